package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "upsell-workers/internal/common/errors"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		},
	}}
}

// ==========================
// Retry Tests
// ==========================

func TestExecuteWithRetry_RecoversFromTransientError(t *testing.T) {
	attempts := 0
	result, err := testClient().ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, attempts)
}

func TestExecuteWithRetry_MapsErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     apperrors.ErrorCode
		wantAttempts int
	}{
		{"unavailable exhausts retries", errors.New("connection refused"), apperrors.ErrCodeExternalService, 3},
		{"deadline", errors.New("context deadline exceeded"), apperrors.ErrCodeTimeout, 3},
		{"not found not retried", errors.New("NOT_FOUND: job not found"), apperrors.ErrCodeInvalidRequest, 1},
		{"permission", errors.New("permission denied"), apperrors.ErrCodeAuthentication, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			_, err := testClient().ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
				attempts++
				return nil, tt.err
			}, "complete-job")

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr), "got %v", err)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestExecuteWithRetry_Canceled(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		return nil, errors.New("unavailable")
	}, "topology")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("Broken pipe")))
	assert.True(t, isRetryableZeebeError(errors.New("gateway UNAVAILABLE")))
	assert.False(t, isRetryableZeebeError(errors.New("invalid argument")))
}
