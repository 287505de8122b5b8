// internal/workers/upsell/simulate-shopper-upsells/handler.go
package simulateshopperupsells

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "upsell-workers/internal/common/errors"
	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/metrics"
	"upsell-workers/internal/common/validation"
	"upsell-workers/internal/models"
	"upsell-workers/internal/upsell"
)

const (
	TaskType = "simulate-shopper-upsells"
)

type ShopperSimulator interface {
	SimulateShopperUpsells(ctx context.Context, profile models.ShopperProfile, limit int, createdBy *string) (*models.SimulationResult, error)
}

type Handler struct {
	config    *Config
	service   ShopperSimulator
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, service ShopperSimulator, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		service:   service,
		validator: validator,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.ParseInput(job.Variables)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) ParseInput(variables string) (*Input, error) {
	if h.validator != nil {
		result, err := h.validator.ValidateJSON(TaskType, []byte(variables))
		if err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
		if !result.Valid {
			return nil, apperrors.NewInvalidRequestError(result.Error())
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError("parse input: " + err.Error())
	}

	if input.CreatedBy != nil && strings.TrimSpace(*input.CreatedBy) == "" {
		input.CreatedBy = nil
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.service.SimulateShopperUpsells(ctx, input.Profile, input.Limit, input.CreatedBy)
	if err != nil {
		return nil, err
	}

	return &Output{
		Simulation:   result,
		SimulationID: result.ID,
		Persisted:    result.Persisted,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":    job.Key,
		"reference": output.Simulation.Reference,
		"persisted": output.Persisted,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := h.errors.HandleJobError(context.Background(), client, job, upsell.StandardError(err))
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
