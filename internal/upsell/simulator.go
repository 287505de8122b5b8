package upsell

import (
	"context"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/models"
)

const DefaultSyntheticCartSize = 2

type SimulatorConfig struct {
	Limits            Limits
	SyntheticCartSize int
	DefaultCategories []string
	// Heuristics tunes intent badges; nil uses DefaultIntentHeuristics.
	Heuristics *IntentHeuristics
}

// Simulator recommends products for a shopper profile instead of a real cart.
// It does not persist anything.
type Simulator struct {
	metadata MetadataBuilder
	config   SimulatorConfig
	logger   logger.Logger
}

func NewSimulator(metadata MetadataBuilder, cfg SimulatorConfig, log logger.Logger) *Simulator {
	if cfg.SyntheticCartSize <= 0 {
		cfg.SyntheticCartSize = DefaultSyntheticCartSize
	}
	return &Simulator{
		metadata: metadata,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "profile-simulator"}),
	}
}

// Simulate only fails when the ranking metadata cannot be built. Sparse or
// unknown profiles fall back to site-wide signals.
func (s *Simulator) Simulate(ctx context.Context, profile models.ShopperProfile, limit int) (*models.SimulationResult, error) {
	meta, err := s.metadata.Build(ctx)
	if err != nil {
		return nil, err
	}

	result := SimulateProfile(meta, profile, limit, s.config)

	s.logger.Debug("shopper profile simulated", map[string]interface{}{
		"categories":      len(result.Criteria.Categories),
		"cartSkus":        result.CartSKUs,
		"recommendations": len(result.Recommendations),
	})
	return result, nil
}

// SimulateProfile is the deterministic part of Simulate.
func SimulateProfile(meta *models.RankingMetadata, profile models.ShopperProfile, limit int, cfg SimulatorConfig) *models.SimulationResult {
	size := cfg.SyntheticCartSize
	if size <= 0 {
		size = DefaultSyntheticCartSize
	}

	normalized := profile.Normalized()
	criteria := DeriveCriteria(normalized, limit, cfg.Limits, cfg.DefaultCategories)
	matched := MatchCategories(meta, criteria.Categories)
	cart := SyntheticCart(meta, matched, size)

	recs := Rank(meta, cart, matched, criteria.Limit)

	preferred := ""
	if len(matched) > 0 {
		preferred = matched[0]
	}
	heuristics := DefaultIntentHeuristics()
	if cfg.Heuristics != nil {
		heuristics = *cfg.Heuristics
	}
	ic := newIntentContext(heuristics, normalized.Intent, normalized.Budget, meta, cart)
	ceiling := BudgetCeiling(normalized.Budget)
	for i := range recs {
		recs[i].Reasons = reasonBadges(meta, recs[i].SKU, preferred, ceiling, ic)
	}

	return &models.SimulationResult{
		Profile:         normalized,
		CartSKUs:        cart,
		Criteria:        criteria,
		Recommendations: recs,
		Rationale:       Rationales(recs),
		MetadataUsed: models.MetadataUsed{
			SiteTop:    meta.SiteTop,
			SiteSecond: meta.SiteSecond,
			Category:   preferred,
		},
	}
}

// SyntheticCart picks the leader of each category in order until size SKUs are
// chosen.
func SyntheticCart(meta *models.RankingMetadata, categories []string, size int) []string {
	cart := make([]string, 0, size)
	chosen := make(map[string]bool)
	for _, c := range categories {
		if len(cart) >= size {
			break
		}
		sku := meta.CategoryLeaders[c]
		if sku == "" || chosen[sku] {
			continue
		}
		chosen[sku] = true
		cart = append(cart, sku)
	}
	return cart
}

func reasonBadges(meta *models.RankingMetadata, sku, preferred string, ceiling float64, ic intentContext) []string {
	p := meta.Products[sku]
	var reasons []string

	if sku == meta.SiteTop {
		reasons = append(reasons, "Site top seller")
	}
	if sku == meta.SiteSecond {
		reasons = append(reasons, "Site second-best seller")
	}
	if preferred != "" {
		if p.Category == preferred {
			reasons = append(reasons, "Matches shopper's preferred category")
		}
		if meta.CategoryLeaders[preferred] == sku {
			reasons = append(reasons, "Category leader")
		}
		if meta.CategorySecondaries[preferred] == sku {
			reasons = append(reasons, "Strong performer in category")
		}
	}
	if p.Price <= ceiling {
		reasons = append(reasons, "Fits shopper budget")
	}
	if badge, ok := ic.badge(p); ok {
		reasons = append(reasons, badge)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "High-performing item in catalog")
	}
	return reasons
}
