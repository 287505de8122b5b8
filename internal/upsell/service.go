package upsell

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/metrics"
	"upsell-workers/internal/models"
)

type ServiceConfig struct {
	Limits            Limits
	SyntheticCartSize int
	DefaultCategories []string
	IntentHeuristics  *IntentHeuristics
}

type ServiceOption func(*Service)

func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) { s.events = p }
}

func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Service exposes the four upsell operations to workers, the HTTP API and the
// CLI.
type Service struct {
	metadata     MetadataBuilder
	resolver     *Resolver
	simulator    *Simulator
	history      HistoryStore
	events       EventPublisher
	tracer       trace.Tracer
	logger       logger.Logger
	newReference func() string
}

func NewService(metadata MetadataBuilder, history HistoryStore, cfg ServiceConfig, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		metadata: metadata,
		resolver: NewResolver(metadata, cfg.Limits, log),
		simulator: NewSimulator(metadata, SimulatorConfig{
			Limits:            cfg.Limits,
			SyntheticCartSize: cfg.SyntheticCartSize,
			DefaultCategories: cfg.DefaultCategories,
			Heuristics:        cfg.IntentHeuristics,
		}, log),
		history:      history,
		tracer:       noop.NewTracerProvider().Tracer("upsell"),
		logger:       log.WithFields(map[string]interface{}{"component": "upsell-service"}),
		newReference: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ResolveCartUpsells(ctx context.Context, skus []string, limit int) (*models.ResolveResult, error) {
	ctx, span := s.tracer.Start(ctx, "upsell.ResolveCartUpsells",
		trace.WithAttributes(attribute.Int("cart.size", len(skus)), attribute.Int("limit", limit)))
	defer span.End()

	result, err := s.resolver.Resolve(ctx, skus, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	metrics.UpsellRecommendationsReturned.WithLabelValues("resolve").Observe(float64(len(result.Upsells)))
	return result, nil
}

// SimulateShopperUpsells computes and records a simulation. A history failure
// is logged and reported through Persisted=false and a nil ID; the computed
// result is still returned.
func (s *Service) SimulateShopperUpsells(ctx context.Context, profile models.ShopperProfile, limit int, createdBy *string) (*models.SimulationResult, error) {
	ctx, span := s.tracer.Start(ctx, "upsell.SimulateShopperUpsells",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	result, err := s.simulator.Simulate(ctx, profile, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	result.Reference = s.newReference()
	metrics.UpsellRecommendationsReturned.WithLabelValues("simulate").Observe(float64(len(result.Recommendations)))

	record := &models.SimulationRecord{
		Reference:       result.Reference,
		CreatedBy:       createdBy,
		Profile:         result.Profile,
		CartSKUs:        result.CartSKUs,
		Criteria:        result.Criteria,
		Recommendations: result.Recommendations,
		Rationale:       result.Rationale,
		MetadataUsed:    result.MetadataUsed,
	}

	id, createdAt, err := s.history.Append(ctx, record)
	if err != nil {
		metrics.UpsellHistoryAppendFailures.Inc()
		span.AddEvent("history append failed")
		s.logger.Warn("simulation not recorded in history", map[string]interface{}{
			"reference": result.Reference,
			"error":     err.Error(),
		})
		return result, nil
	}

	result.ID = &id
	result.CreatedAt = &createdAt
	result.Persisted = true
	span.SetAttributes(attribute.Int64("simulation.id", id))

	s.publishRecorded(ctx, record, id, createdAt)
	return result, nil
}

func (s *Service) ListSimulationHistory(ctx context.Context, limit int) ([]models.SimulationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "upsell.ListSimulationHistory",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	records, err := s.history.List(ctx, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return records, nil
}

func (s *Service) GetUpsellMetadata(ctx context.Context) (*models.UpsellMetadataView, error) {
	ctx, span := s.tracer.Start(ctx, "upsell.GetUpsellMetadata")
	defer span.End()

	meta, err := s.metadata.Build(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return &models.UpsellMetadataView{
		Categories: SortedCategories(meta),
		SiteTop:    meta.SiteTop,
		SiteSecond: meta.SiteSecond,
	}, nil
}

type invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidateMetadata drops the cached snapshot. It is a no-op when metadata is
// built fresh on every call.
func (s *Service) InvalidateMetadata(ctx context.Context) (bool, error) {
	inv, ok := s.metadata.(invalidator)
	if !ok {
		return false, nil
	}
	if err := inv.Invalidate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) publishRecorded(ctx context.Context, record *models.SimulationRecord, id int64, createdAt time.Time) {
	if s.events == nil {
		return
	}

	skus := make([]string, 0, len(record.Recommendations))
	for _, rec := range record.Recommendations {
		skus = append(skus, rec.SKU)
	}

	event := SimulationRecordedEvent{
		ID:              id,
		Reference:       record.Reference,
		CreatedAt:       createdAt,
		CreatedBy:       record.CreatedBy,
		Categories:      record.Criteria.Categories,
		Recommendations: skus,
	}
	if err := s.events.PublishSimulationRecorded(ctx, event); err != nil {
		metrics.UpsellEventPublishFailures.Inc()
		s.logger.Warn("failed to publish simulation event", map[string]interface{}{
			"simulationId": id,
			"error":        err.Error(),
		})
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
