// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"upsell-workers/internal/common/config"
)

// JobHandler completes, fails or throws on the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// StartWorker opens a job worker for taskType. It returns nil when the worker
// is disabled in configuration.
func StartWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler JobHandler,
	logger *zap.Logger,
) *CamundaWorker {
	if !wcfg.Enabled {
		logger.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout) + 5*time.Second).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

// Stop closes the job worker and waits for in-flight jobs. The shared Zeebe
// client stays open.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))

	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out", zap.String("taskType", w.taskType))
	}
}

// JobRecorder receives one observation per handled job.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, status string)
	RecordJobDuration(ctx context.Context, duration time.Duration, status string)
}

type instrumentedHandler struct {
	next     JobHandler
	recorder JobRecorder
}

// Instrument records the outcome and duration of every job handled by next.
func Instrument(next JobHandler, recorder JobRecorder) JobHandler {
	if recorder == nil {
		return next
	}
	return &instrumentedHandler{next: next, recorder: recorder}
}

func (h *instrumentedHandler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	observed := &outcomeClient{JobClient: client, status: "abandoned"}

	h.next.Handle(observed, job)

	ctx := context.Background()
	h.recorder.RecordJobProcessed(ctx, observed.status)
	h.recorder.RecordJobDuration(ctx, time.Since(start), observed.status)
}

// outcomeClient remembers the last command a handler created.
type outcomeClient struct {
	worker.JobClient
	status string
}

func (c *outcomeClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.status = "completed"
	return c.JobClient.NewCompleteJobCommand()
}

func (c *outcomeClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.status = "failed"
	return c.JobClient.NewFailJobCommand()
}

func (c *outcomeClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.status = "bpmn_error"
	return c.JobClient.NewThrowErrorCommand()
}
