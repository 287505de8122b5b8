// internal/workers/upsell/resolve-cart-upsells/handler_test.go
package resolvecartupsells

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"upsell-workers/configs"
	"upsell-workers/internal/common/camunda/camundatest"
	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/validation"
	"upsell-workers/internal/models"
	"upsell-workers/internal/upsell"
	"upsell-workers/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ResolveCartUpsells(ctx context.Context, skus []string, limit int) (*models.ResolveResult, error) {
	args := m.Called(ctx, skus, limit)
	result, _ := args.Get(0).(*models.ResolveResult)
	return result, args.Error(1)
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestValidator(t *testing.T) *validation.Validator {
	reg, err := registry.Parse(configs.ActivityRegistry)
	require.NoError(t, err)
	v, err := validation.NewValidator(reg)
	require.NoError(t, err)
	return v
}

func createTestHandler(t *testing.T, svc CartResolver) *Handler {
	return NewHandler(createTestConfig(), svc, createTestValidator(t), logger.NewTestLogger(t))
}

func sampleResult() *models.ResolveResult {
	return &models.ResolveResult{
		Upsells: []models.UpsellRecommendation{
			{SKU: "SH-1", RankSource: models.RankSourceCategoryLeader, Category: "Shirts"},
			{SKU: "MG-1", RankSource: models.RankSourceSiteSecond, Category: "Mugs"},
		},
		Metadata: models.MetadataSummary{SiteTop: "SH-1", SiteSecond: "MG-1", ProductCount: 4},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	svc := new(MockResolver)
	svc.On("ResolveCartUpsells", mock.Anything, []string{"sh-2"}, 2).Return(sampleResult(), nil)

	output, err := createTestHandler(t, svc).Execute(context.Background(), &Input{SKUs: []string{"sh-2"}, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, output.Count)
	assert.Equal(t, "SH-1", output.Upsells[0].SKU)
	assert.Equal(t, 4, output.Metadata.ProductCount)
	svc.AssertExpectations(t)
}

func TestHandler_ExecuteSourceFailure(t *testing.T) {
	svc := new(MockResolver)
	svc.On("ResolveCartUpsells", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: connection refused", upsell.ErrSignalSourceUnavailable))

	_, err := createTestHandler(t, svc).Execute(context.Background(), &Input{})

	assert.ErrorIs(t, err, upsell.ErrSignalSourceUnavailable)
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, new(MockResolver))

	input, err := h.ParseInput(`{"skus":["SH-1"],"limit":3,"orderId":"o-77"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"SH-1"}, input.SKUs)
	assert.Equal(t, 3, input.Limit)

	_, err = h.ParseInput(`{"skus":"SH-1"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
}

// ==========================
// Job Lifecycle Tests
// ==========================

func TestHandler_HandleCompletesJob(t *testing.T) {
	svc := new(MockResolver)
	svc.On("ResolveCartUpsells", mock.Anything, []string{"SH-2"}, 0).Return(sampleResult(), nil)
	client := camundatest.NewJobClient()

	createTestHandler(t, svc).Handle(client, camundatest.Job(TaskType, `{"skus":["SH-2"]}`, 3))

	require.NotNil(t, client.Completed())
	var out Output
	require.NoError(t, json.Unmarshal([]byte(client.Completed().Variables), &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, models.RankSourceCategoryLeader, out.Upsells[0].RankSource)
}

func TestHandler_HandleInvalidInputThrows(t *testing.T) {
	svc := new(MockResolver)
	client := camundatest.NewJobClient()

	createTestHandler(t, svc).Handle(client, camundatest.Job(TaskType, `{"limit":"four"}`, 3))

	require.NotNil(t, client.Thrown())
	assert.Equal(t, "INVALID_REQUEST", client.Thrown().ErrorCode)
	assert.Nil(t, client.Completed())
	svc.AssertNotCalled(t, "ResolveCartUpsells", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_HandleSourceFailureRetries(t *testing.T) {
	svc := new(MockResolver)
	svc.On("ResolveCartUpsells", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: timeout", upsell.ErrSignalSourceUnavailable))
	client := camundatest.NewJobClient()

	createTestHandler(t, svc).Handle(client, camundatest.Job(TaskType, `{}`, 3))

	require.NotNil(t, client.Failed())
	assert.Equal(t, int32(2), client.Failed().Retries)
	assert.Nil(t, client.Thrown())
}
