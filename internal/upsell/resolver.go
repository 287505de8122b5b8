package upsell

import (
	"context"
	"time"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/models"
)

const (
	DefaultLimit = 4
	MaxLimit     = 50
)

// Limits normalizes caller supplied recommendation limits.
type Limits struct {
	Default int
	Max     int
}

func DefaultLimits() Limits {
	return Limits{Default: DefaultLimit, Max: MaxLimit}
}

// Normalize maps non-positive limits to the default and caps large ones.
func (l Limits) Normalize(limit int) int {
	def, max := l.Default, l.Max
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

// Resolver recommends complementary products for a concrete cart.
type Resolver struct {
	metadata MetadataBuilder
	limits   Limits
	logger   logger.Logger
}

func NewResolver(metadata MetadataBuilder, limits Limits, log logger.Logger) *Resolver {
	return &Resolver{
		metadata: metadata,
		limits:   limits,
		logger:   log.WithFields(map[string]interface{}{"component": "cart-resolver"}),
	}
}

func (r *Resolver) Resolve(ctx context.Context, skus []string, limit int) (*models.ResolveResult, error) {
	start := time.Now()

	meta, err := r.metadata.Build(ctx)
	if err != nil {
		return nil, err
	}

	cart := NormalizeCart(skus)
	limit = r.limits.Normalize(limit)
	upsells := Rank(meta, cart, nil, limit)

	r.logger.Debug("cart upsells resolved", map[string]interface{}{
		"cartSize":   len(cart),
		"limit":      limit,
		"upsells":    len(upsells),
		"durationMs": time.Since(start).Milliseconds(),
	})

	return &models.ResolveResult{
		Upsells:  upsells,
		Metadata: meta.Summary(),
	}, nil
}

// NormalizeCart canonicalizes SKUs and collapses duplicates, keeping first-seen
// order.
func NormalizeCart(skus []string) []string {
	seen := make(map[string]bool, len(skus))
	cart := make([]string, 0, len(skus))
	for _, raw := range skus {
		sku := NormalizeSKU(raw)
		if sku == "" || seen[sku] {
			continue
		}
		seen[sku] = true
		cart = append(cart, sku)
	}
	return cart
}

// CartCategories lists the catalog categories of the cart in first-seen order.
// SKUs missing from the catalog are skipped.
func CartCategories(meta *models.RankingMetadata, cart []string) []string {
	seen := make(map[string]bool)
	var categories []string
	for _, sku := range cart {
		p, ok := meta.Products[sku]
		if !ok || p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}
	return categories
}

// Rank is the deterministic core shared by the resolver and the simulator.
// The cart must already be normalized. extraCategories are considered after
// the cart's own categories.
//
// Order: per category leader then secondary, then site top, site second, then
// unused category leaders by category name. SKUs in the cart or already
// proposed are skipped.
func Rank(meta *models.RankingMetadata, cart []string, extraCategories []string, limit int) []models.UpsellRecommendation {
	if limit <= 0 {
		return []models.UpsellRecommendation{}
	}

	inCart := make(map[string]bool, len(cart))
	for _, sku := range cart {
		inCart[sku] = true
	}
	proposed := make(map[string]bool)
	recs := make([]models.UpsellRecommendation, 0, limit)

	propose := func(sku string, source models.RankSource, category string) {
		if sku == "" || inCart[sku] || proposed[sku] {
			return
		}
		proposed[sku] = true
		recs = append(recs, models.UpsellRecommendation{
			SKU:        sku,
			RankSource: source,
			Category:   category,
		})
	}

	categories := CartCategories(meta, cart)
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		seen[c] = true
	}
	for _, c := range extraCategories {
		if c != "" && !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}

	for _, c := range categories {
		propose(meta.CategoryLeaders[c], models.RankSourceCategoryLeader, c)
		propose(meta.CategorySecondaries[c], models.RankSourceCategorySecondary, c)
	}

	if len(recs) < limit {
		propose(meta.SiteTop, models.RankSourceSiteTop, meta.Products[meta.SiteTop].Category)
		propose(meta.SiteSecond, models.RankSourceSiteSecond, meta.Products[meta.SiteSecond].Category)
	}

	if len(recs) < limit {
		for _, c := range SortedCategories(meta) {
			propose(meta.CategoryLeaders[c], models.RankSourceFallback, c)
		}
	}

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
