package upsell

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/models"
)

// BreakerConfig configures the circuit breaker placed in front of a SignalSource.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// BreakerSource fails fast while the wrapped source keeps failing, so a dead
// catalog store does not tie up every request until its deadline.
type BreakerSource struct {
	source SignalSource
	cb     *gobreaker.CircuitBreaker[[]models.ProductSignal]
}

func NewBreakerSource(source SignalSource, cfg BreakerConfig, log logger.Logger) *BreakerSource {
	if cfg.Name == "" {
		cfg.Name = "upsell-signal-source"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var abort *callerAbort
			return err == nil || errors.As(err, &abort)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("signal source breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}

	return &BreakerSource{
		source: source,
		cb:     gobreaker.NewCircuitBreaker[[]models.ProductSignal](settings),
	}
}

func (b *BreakerSource) LoadSignals(ctx context.Context) ([]models.ProductSignal, error) {
	signals, err := b.cb.Execute(func() ([]models.ProductSignal, error) {
		signals, err := b.source.LoadSignals(ctx)
		if err != nil && callerGaveUp(ctx) {
			return nil, &callerAbort{err: err}
		}
		return signals, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("signal source circuit %s: %w", b.cb.State(), err)
		}
		var abort *callerAbort
		if errors.As(err, &abort) {
			return nil, abort.err
		}
		return nil, err
	}
	return signals, nil
}

// callerAbort marks a load that failed because the caller's ctx ended, not
// because the source did. It never counts against the breaker.
type callerAbort struct {
	err error
}

func (e *callerAbort) Error() string { return e.err.Error() }
func (e *callerAbort) Unwrap() error { return e.err }

// callerGaveUp reports whether ctx was cancelled or hit a deadline set by the
// caller. A shared rebuild timing out carries ErrSignalSourceUnavailable as its
// cause and still counts as a source failure.
func callerGaveUp(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	return !errors.Is(context.Cause(ctx), ErrSignalSourceUnavailable)
}

// State exposes the breaker state for readiness checks.
func (b *BreakerSource) State() string {
	return b.cb.State().String()
}
