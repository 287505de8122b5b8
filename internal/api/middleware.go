package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apperrors "upsell-workers/internal/common/errors"
	"upsell-workers/internal/common/metrics"
)

type ctxKey int

const actorKey ctxKey = iota

// actorFrom returns the token subject of an admin request, or nil when auth
// is disabled.
func actorFrom(ctx context.Context) *string {
	if sub, ok := ctx.Value(actorKey).(string); ok && sub != "" {
		return &sub
	}
	return nil
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.respondError(w, r, apperrors.NewAuthenticationError("missing bearer token"))
			return
		}

		info, err := s.tokens.ValidateToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if !info.HasRealmRole(s.opts.AdminRole) {
			s.respondError(w, r, apperrors.NewForbiddenError("role "+s.opts.AdminRole+" required"))
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, info.Sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestMetrics records per-route counters after the handler ran, so the
// matched chi pattern is known.
func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
