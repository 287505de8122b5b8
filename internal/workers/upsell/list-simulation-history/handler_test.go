// internal/workers/upsell/list-simulation-history/handler_test.go
package listsimulationhistory

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

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) ListSimulationHistory(ctx context.Context, limit int) ([]models.SimulationRecord, error) {
	args := m.Called(ctx, limit)
	records, _ := args.Get(0).([]models.SimulationRecord)
	return records, args.Error(1)
}

func createTestHandler(t *testing.T, svc HistoryLister) *Handler {
	reg, err := registry.Parse(configs.ActivityRegistry)
	require.NoError(t, err)
	v, err := validation.NewValidator(reg)
	require.NoError(t, err)
	return NewHandler(&Config{Timeout: 5 * time.Second}, svc, v, logger.NewTestLogger(t))
}

func TestHandler_ExecuteEmptyHistory(t *testing.T) {
	svc := new(MockHistory)
	svc.On("ListSimulationHistory", mock.Anything, 0).Return(nil, nil)

	out, err := createTestHandler(t, svc).Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.NotNil(t, out.Simulations)
	assert.Equal(t, 0, out.Count)
}

func TestHandler_HandleCompletesJob(t *testing.T) {
	svc := new(MockHistory)
	svc.On("ListSimulationHistory", mock.Anything, 2).Return([]models.SimulationRecord{
		{ID: 9, Reference: "sim-9", CreatedAt: time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)},
		{ID: 8, Reference: "sim-8", CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}, nil)
	client := camundatest.NewJobClient()

	createTestHandler(t, svc).Handle(client, camundatest.Job(TaskType, `{"limit":2}`, 3))

	require.NotNil(t, client.Completed())
	var out Output
	require.NoError(t, json.Unmarshal([]byte(client.Completed().Variables), &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, int64(9), out.Simulations[0].ID)
}

func TestHandler_HandlePersistenceFailureOnLastRetry(t *testing.T) {
	svc := new(MockHistory)
	svc.On("ListSimulationHistory", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: relation missing", upsell.ErrPersistenceFailure))
	client := camundatest.NewJobClient()

	createTestHandler(t, svc).Handle(client, camundatest.Job(TaskType, `{}`, 1))

	require.NotNil(t, client.Thrown())
	assert.Equal(t, "PERSISTENCE_FAILURE", client.Thrown().ErrorCode)
}

func TestHandler_HandleInvalidLimitThrows(t *testing.T) {
	client := camundatest.NewJobClient()

	createTestHandler(t, new(MockHistory)).Handle(client, camundatest.Job(TaskType, `{"limit":2.5}`, 3))

	require.NotNil(t, client.Thrown())
	assert.Equal(t, "INVALID_REQUEST", client.Thrown().ErrorCode)
}
