package upsell

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/metrics"
	"upsell-workers/internal/models"
)

// MetadataBuilder produces the ranking metadata snapshot for one request.
type MetadataBuilder interface {
	Build(ctx context.Context) (*models.RankingMetadata, error)
}

// Builder reads the signal source on every call. Wrap it in a CachingBuilder
// to reuse snapshots.
type Builder struct {
	source SignalSource
	logger logger.Logger
}

func NewBuilder(source SignalSource, log logger.Logger) *Builder {
	return &Builder{
		source: source,
		logger: log.WithFields(map[string]interface{}{"component": "metadata-builder"}),
	}
}

func (b *Builder) Build(ctx context.Context) (*models.RankingMetadata, error) {
	start := time.Now()

	signals, err := b.source.LoadSignals(ctx)
	if err != nil && ctx.Err() != nil {
		// the caller's deadline or cancellation, or a rebuild timeout whose
		// cause already names the source
		b.logger.Warn("product signal load interrupted", map[string]interface{}{
			"error": err.Error(),
			"cause": context.Cause(ctx).Error(),
		})
		return nil, fmt.Errorf("load product signals: %w", context.Cause(ctx))
	}
	if err != nil {
		b.logger.Error("failed to load product signals", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSignalSourceUnavailable, err)
	}

	meta := BuildMetadata(signals)

	metrics.UpsellMetadataBuildDuration.Observe(time.Since(start).Seconds())
	b.logger.Debug("ranking metadata built", map[string]interface{}{
		"products":   len(meta.Products),
		"categories": len(meta.CategoryLeaders),
		"siteTop":    meta.SiteTop,
		"siteSecond": meta.SiteSecond,
		"durationMs": time.Since(start).Milliseconds(),
	})

	return meta, nil
}

// NormalizeSKU is the canonical form used for every SKU comparison.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// BuildMetadata derives leaders, secondaries and site-wide signals. A product is
// signaled when it has sold at least one unit; ties on units sold are broken by
// SKU so the result does not depend on input order.
func BuildMetadata(signals []models.ProductSignal) *models.RankingMetadata {
	meta := &models.RankingMetadata{
		CategoryLeaders:     make(map[string]string),
		CategorySecondaries: make(map[string]string),
		Products:            make(map[string]models.ProductMeta, len(signals)),
	}

	ranked := make([]models.ProductMeta, 0, len(signals))
	for _, sig := range signals {
		sku := NormalizeSKU(sig.SKU)
		if sku == "" {
			continue
		}
		if _, seen := meta.Products[sku]; seen {
			continue
		}
		p := models.ProductMeta{
			SKU:       sku,
			Name:      strings.TrimSpace(sig.Name),
			Category:  strings.TrimSpace(sig.Category),
			Price:     sig.Price,
			UnitsSold: sig.UnitsSold,
		}
		meta.Products[sku] = p
		if p.UnitsSold > 0 {
			ranked = append(ranked, p)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].UnitsSold != ranked[j].UnitsSold {
			return ranked[i].UnitsSold > ranked[j].UnitsSold
		}
		return ranked[i].SKU < ranked[j].SKU
	})

	for i, p := range ranked {
		switch i {
		case 0:
			meta.SiteTop = p.SKU
			p.IsSiteTop = true
		case 1:
			meta.SiteSecond = p.SKU
			p.IsSiteSecond = true
		}

		if p.Category != "" {
			if _, ok := meta.CategoryLeaders[p.Category]; !ok {
				meta.CategoryLeaders[p.Category] = p.SKU
				p.IsCategoryLeader = true
			} else if _, ok := meta.CategorySecondaries[p.Category]; !ok {
				meta.CategorySecondaries[p.Category] = p.SKU
				p.IsCategorySecondary = true
			}
		}

		meta.Products[p.SKU] = p
	}

	return meta
}

// SortedCategories returns every non-empty product category, ordered
// case-insensitively with the exact spelling as tie-break.
func SortedCategories(meta *models.RankingMetadata) []string {
	seen := make(map[string]bool)
	categories := make([]string, 0, len(meta.CategoryLeaders))
	for _, p := range meta.Products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}
	sort.Slice(categories, func(i, j int) bool {
		li, lj := strings.ToLower(categories[i]), strings.ToLower(categories[j])
		if li != lj {
			return li < lj
		}
		return categories[i] < categories[j]
	})
	return categories
}
