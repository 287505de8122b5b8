// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"upsell-workers/internal/common/errors"
	commonhttp "upsell-workers/internal/common/http"
)

// TokenValidator introspects bearer tokens. The API uses it to gate admin
// routes.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenInfo, error)
}

// KeycloakClient introspects access tokens against a Keycloak realm.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(10 * time.Second),
	}
}

// ValidateToken checks if an access token is valid and active.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequest(http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("create introspection request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		stdErr := errors.NewExternalServiceError("keycloak",
			fmt.Errorf("introspection status %d: %s", resp.StatusCode, string(body)))
		stdErr.Retryable = isTransientHTTPError(resp.StatusCode)
		return nil, stdErr
	}

	var tokenInfo TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("decode introspection response: %w", err))
	}

	if !tokenInfo.Active {
		return nil, errors.NewAuthenticationError("token is expired, revoked or malformed")
	}

	return &tokenInfo, nil
}

// isTransientHTTPError returns true if the HTTP status code indicates a potentially transient error.
func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// TokenInfo holds the information returned by the token introspection endpoint.
type TokenInfo struct {
	Active      bool     `json:"active"`
	Scope       string   `json:"scope,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	Username    string   `json:"username,omitempty"`
	TokenType   string   `json:"token_type,omitempty"`
	Exp         int64    `json:"exp,omitempty"`
	Sub         string   `json:"sub,omitempty"` // user ID, recorded as created_by
	Aud         Audience `json:"aud,omitempty"`
	Iss         string   `json:"iss,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// HasRealmRole reports whether the token carries role in realm_access.
func (t *TokenInfo) HasRealmRole(role string) bool {
	for _, r := range t.RealmAccess.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Audience accepts both the string and array forms of the aud claim.
type Audience []string

func (a *Audience) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = Audience{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = many
	return nil
}
