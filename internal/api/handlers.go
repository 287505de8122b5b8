package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "upsell-workers/internal/common/errors"
	"upsell-workers/internal/models"
)

const maxBodyBytes = 1 << 20

// Task types double as schema keys so HTTP bodies and job variables share one
// definition in the activity registry.
const (
	schemaResolve  = "resolve-cart-upsells"
	schemaSimulate = "simulate-shopper-upsells"
)

type resolveRequest struct {
	SKUs  []string `json:"skus"`
	Limit int      `json:"limit"`
}

type simulateRequest struct {
	Profile models.ShopperProfile `json:"profile"`
	Limit   int                   `json:"limit"`
}

type historyResponse struct {
	Simulations []models.SimulationRecord `json:"simulations"`
	Count       int                       `json:"count"`
}

type invalidateResponse struct {
	Invalidated bool `json:"invalidated"`
}

// decodeBody validates the raw body against the registered schema before
// decoding it into dst. An empty body is treated as an empty object.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewInvalidRequestError("read body: " + err.Error())
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	if s.validator != nil {
		result, err := s.validator.ValidateJSON(schema, body)
		if err != nil {
			return apperrors.NewInvalidRequestError(err.Error())
		}
		if !result.Valid {
			return apperrors.NewInvalidRequestError(result.Error())
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewInvalidRequestError("decode body: " + err.Error())
	}
	return nil
}

func (s *Server) resolveCart(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := s.decodeBody(w, r, schemaResolve, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.ResolveCartUpsells(r.Context(), req.SKUs, req.Limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) simulateShopper(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := s.decodeBody(w, r, schemaSimulate, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.SimulateShopperUpsells(r.Context(), req.Profile, req.Limit, actorFrom(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Persisted {
		status = http.StatusCreated
	}
	respondJSON(w, status, result)
}

func (s *Server) listSimulations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, apperrors.NewInvalidRequestError("limit must be an integer"))
			return
		}
		limit = parsed
	}

	records, err := s.service.ListSimulationHistory(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []models.SimulationRecord{}
	}
	respondJSON(w, http.StatusOK, historyResponse{Simulations: records, Count: len(records)})
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetUpsellMetadata(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if view.Categories == nil {
		view.Categories = []string{}
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) invalidateMetadata(w http.ResponseWriter, r *http.Request) {
	invalidated, err := s.service.InvalidateMetadata(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Info("metadata cache invalidated", map[string]interface{}{
		"invalidated": invalidated,
	})
	respondJSON(w, http.StatusOK, invalidateResponse{Invalidated: invalidated})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready runs every readiness check with its own short deadline.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	results := make(map[string]string, len(s.opts.Checks))

	for name, check := range s.opts.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := check(ctx)
		cancel()

		if err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	respondJSON(w, status, map[string]interface{}{"status": state, "checks": results})
}
