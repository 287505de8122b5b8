// Package upsell implements the storefront upsell engine: ranking metadata,
// cart resolution, shopper simulation and simulation history.
package upsell

import (
	"context"
	"errors"

	apperrors "upsell-workers/internal/common/errors"
)

var (
	ErrSignalSourceUnavailable = errors.New("SIGNAL_SOURCE_UNAVAILABLE")
	ErrInvalidRequest          = errors.New("INVALID_REQUEST")
	ErrPersistenceFailure      = errors.New("PERSISTENCE_FAILURE")
)

// StandardError classifies an engine error into the shared error model used
// by the job workers and the HTTP API.
func StandardError(err error) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &stdErr):
		return stdErr
	case errors.Is(err, ErrInvalidRequest):
		return apperrors.NewInvalidRequestError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("upsell", err)
	case errors.Is(err, ErrSignalSourceUnavailable):
		return apperrors.NewSignalSourceUnavailableError(err)
	case errors.Is(err, ErrPersistenceFailure):
		return apperrors.NewPersistenceFailureError(err)
	default:
		return apperrors.NewInternalError(err)
	}
}
