// Package api serves the upsell operations over HTTP using a chi router.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"upsell-workers/internal/common/auth"
	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/validation"
	"upsell-workers/internal/models"
)

// UpsellService is the engine surface exposed over HTTP.
type UpsellService interface {
	ResolveCartUpsells(ctx context.Context, skus []string, limit int) (*models.ResolveResult, error)
	SimulateShopperUpsells(ctx context.Context, profile models.ShopperProfile, limit int, createdBy *string) (*models.SimulationResult, error)
	ListSimulationHistory(ctx context.Context, limit int) ([]models.SimulationRecord, error)
	GetUpsellMetadata(ctx context.Context) (*models.UpsellMetadataView, error)
	InvalidateMetadata(ctx context.Context) (bool, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	RequestTimeout    time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// AdminRole is the realm role required on admin routes.
	AdminRole string
	Checks    map[string]ReadinessCheck
}

type Server struct {
	service   UpsellService
	validator *validation.Validator
	tokens    auth.TokenValidator
	opts      Options
	logger    logger.Logger
}

// NewServer wires the API. A nil tokens validator leaves admin routes open,
// which is only meant for local development.
func NewServer(service UpsellService, validator *validation.Validator, tokens auth.TokenValidator, opts Options, log logger.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.RateLimitRequests <= 0 {
		opts.RateLimitRequests = 100
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if opts.AdminRole == "" {
		opts.AdminRole = "admin"
	}
	return &Server{
		service:   service,
		validator: validator,
		tokens:    tokens,
		opts:      opts,
		logger:    log.WithFields(map[string]interface{}{"component": "http-api"}),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestMetrics)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/upsells", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.opts.RateLimitRequests, s.opts.RateLimitWindow))
		r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))

		r.Post("/resolve", s.resolveCart)
		r.Get("/metadata", s.getMetadata)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Post("/simulations", s.simulateShopper)
			r.Get("/simulations", s.listSimulations)
			r.Post("/metadata/invalidate", s.invalidateMetadata)
		})
	})

	return r
}

// ListenAndServe blocks until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
