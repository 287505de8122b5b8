// Package errors provides standardized error handling for BPMN workflow integration
// and the HTTP API.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Upsell engine errors
const (
	ErrCodeSignalSourceUnavailable ErrorCode = "SIGNAL_SOURCE_UNAVAILABLE"
	ErrCodeInvalidRequest          ErrorCode = "INVALID_REQUEST"
	ErrCodePersistenceFailure      ErrorCode = "PERSISTENCE_FAILURE"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeCacheUnavailable              ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeTimeout                       ErrorCode = "TIMEOUT_ERROR"
	ErrCodeExternalService               ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// Access errors, only raised by the HTTP API
const (
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewSignalSourceUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSignalSourceUnavailable,
		Message:   "Could not compute recommendations",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewPersistenceFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailure,
		Message:   "Simulation history unavailable",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Failed to connect to database",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Failed to connect to Elasticsearch",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Metadata cache unavailable",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Admin access required",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the BPMN error codes modelled
// in the upsell processes. Codes missing here are thrown unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeSignalSourceUnavailable:       "SIGNAL_SOURCE_UNAVAILABLE",
	ErrCodeInvalidRequest:                "INVALID_REQUEST",
	ErrCodePersistenceFailure:            "PERSISTENCE_FAILURE",
	ErrCodeDatabaseConnectionFailed:      "SIGNAL_SOURCE_UNAVAILABLE",
	ErrCodeElasticsearchConnectionFailed: "SIGNAL_SOURCE_UNAVAILABLE",
	ErrCodeTimeout:                       "TIMEOUT_ERROR",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSignalSourceUnavailable,
		ErrCodePersistenceFailure,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout,
		ErrCodeCacheUnavailable:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SIGNAL") || strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "DATABASE"):
		return "SIGNAL_SOURCE"
	case strings.Contains(codeStr, "PERSISTENCE"):
		return "HISTORY"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "FORBIDDEN"):
		return "ACCESS"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the response status used by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeExternalService:
		return http.StatusBadGateway
	case ErrCodeSignalSourceUnavailable,
		ErrCodePersistenceFailure,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeCacheUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
