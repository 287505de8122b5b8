package upsell

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestLogger(t testing.TB) logger.Logger {
	return logger.NewTestLogger(t)
}

// scenarioSignals: Shirts (SH-1 leader, SH-2 secondary), Mugs (MG-1), Hats
// (HT-1). Site top SH-1, site second MG-1.
func scenarioSignals() []models.ProductSignal {
	return []models.ProductSignal{
		{SKU: "SH-1", Name: "Classic Tee", Category: "Shirts", Price: 18, UnitsSold: 100},
		{SKU: "MG-1", Name: "Coffee Mug", Category: "Mugs", Price: 12, UnitsSold: 80},
		{SKU: "SH-2", Name: "Vintage Tee", Category: "Shirts", Price: 22, UnitsSold: 50},
		{SKU: "HT-1", Name: "Trucker Hat", Category: "Hats", Price: 25, UnitsSold: 10},
	}
}

// shirtsAndMugsSignals is the scenario catalog without Hats.
func shirtsAndMugsSignals() []models.ProductSignal {
	return scenarioSignals()[:3]
}

type staticSource struct {
	signals []models.ProductSignal
	err     error
	calls   int32
	delay   time.Duration
}

func (s *staticSource) LoadSignals(ctx context.Context) ([]models.ProductSignal, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.ProductSignal, len(s.signals))
	copy(out, s.signals)
	return out, nil
}

func (s *staticSource) Calls() int {
	return int(atomic.LoadInt32(&s.calls))
}

// staticBuilder returns a fixed snapshot.
type staticBuilder struct {
	meta *models.RankingMetadata
	err  error
}

func (b *staticBuilder) Build(context.Context) (*models.RankingMetadata, error) {
	return b.meta, b.err
}

func newStaticBuilder(signals []models.ProductSignal) *staticBuilder {
	return &staticBuilder{meta: BuildMetadata(signals)}
}

type memoryHistory struct {
	mu      sync.Mutex
	records []models.SimulationRecord
	err     error
	now     time.Time
}

func (m *memoryHistory) Append(_ context.Context, record *models.SimulationRecord) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, time.Time{}, m.err
	}
	rec := *record
	rec.ID = int64(len(m.records) + 1)
	rec.CreatedAt = m.now.Add(time.Duration(rec.ID) * time.Second)
	m.records = append(m.records, rec)
	return rec.ID, rec.CreatedAt, nil
}

func (m *memoryHistory) List(_ context.Context, limit int) ([]models.SimulationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	limit = ClampHistoryLimit(limit)
	out := make([]models.SimulationRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

var errStoreDown = errors.New("connection refused")

func skusOf(recs []models.UpsellRecommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.SKU)
	}
	return out
}
