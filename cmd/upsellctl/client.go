// cmd/upsellctl/client.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	commonhttp "upsell-workers/internal/common/http"
)

// apiError is a structured error answered by the API.
type apiError struct {
	Status    int
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details"`
	Retryable bool   `json:"retryable"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

type apiClient struct {
	baseURL string
	token   string
	http    *commonhttp.Client
}

func newAPIClient(opts *globalOptions) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(opts.server, "/"),
		token:   opts.token,
		http:    commonhttp.NewClient(opts.timeout),
	}
}

// call sends body (when non-nil) as JSON and returns the raw response body of
// a 2xx answer.
func (c *apiClient) call(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == nil {
		return nil, &apiError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: strings.TrimSpace(string(data))}
	}
	envelope.Error.Status = resp.StatusCode
	return nil, envelope.Error
}
