// internal/workers/upsell/get-upsell-metadata/handler.go
package getupsellmetadata

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "upsell-workers/internal/common/errors"
	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/metrics"
	"upsell-workers/internal/models"
	"upsell-workers/internal/upsell"
)

const (
	TaskType = "get-upsell-metadata"
)

type MetadataReader interface {
	GetUpsellMetadata(ctx context.Context) (*models.UpsellMetadataView, error)
}

// Handler takes no input, so unlike the other upsell workers it skips schema
// validation.
type Handler struct {
	config  *Config
	service MetadataReader
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, service MetadataReader, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		service: service,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log,
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx)
	if err != nil {
		stdErr := h.errors.HandleJobError(context.Background(), client, job, upsell.StandardError(err))
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		return
	}

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
		"jobKey":     job.Key,
		"categories": len(output.Categories),
	})
}

func (h *Handler) execute(ctx context.Context) (*Output, error) {
	view, err := h.service.GetUpsellMetadata(ctx)
	if err != nil {
		return nil, err
	}

	categories := view.Categories
	if categories == nil {
		categories = []string{}
	}
	return &Output{
		Categories: categories,
		SiteTop:    view.SiteTop,
		SiteSecond: view.SiteSecond,
	}, nil
}

func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	return h.execute(ctx)
}
