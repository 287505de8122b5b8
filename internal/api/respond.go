package api

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apperrors "upsell-workers/internal/common/errors"
	"upsell-workers/internal/upsell"
)

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"requestId,omitempty"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"encode response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := upsell.StandardError(err)
	status := apperrors.HTTPStatus(stdErr.Code)
	requestID := chimiddleware.GetReqID(r.Context())

	fields := map[string]interface{}{
		"requestId":     requestID,
		"method":        r.Method,
		"path":          r.URL.Path,
		"errorCode":     stdErr.Code,
		"errorCategory": apperrors.GetErrorCategory(stdErr.Code),
		"error":         err.Error(),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Warn("request rejected", fields)
	}

	body := errorBody{
		Error: errorDetail{
			Code:      string(stdErr.Code),
			Message:   stdErr.Message,
			Retryable: stdErr.Retryable,
		},
		RequestID: requestID,
	}
	// Internal causes stay in the log.
	if status < http.StatusInternalServerError {
		body.Error.Details = stdErr.Details
	}
	respondJSON(w, status, body)
}
