package upsell

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/models"
)

// ==========================
// Core Functionality Tests
// ==========================

func TestResolver_Resolve_Scenario(t *testing.T) {
	r := NewResolver(newStaticBuilder(scenarioSignals()), DefaultLimits(), createTestLogger(t))

	result, err := r.Resolve(context.Background(), []string{"SH-2"}, 3)

	require.NoError(t, err)
	assert.Equal(t, []models.UpsellRecommendation{
		{SKU: "SH-1", RankSource: models.RankSourceCategoryLeader, Category: "Shirts"},
		{SKU: "MG-1", RankSource: models.RankSourceSiteSecond, Category: "Mugs"},
		{SKU: "HT-1", RankSource: models.RankSourceFallback, Category: "Hats"},
	}, result.Upsells)
	assert.Equal(t, "SH-1", result.Metadata.SiteTop)
	assert.Equal(t, "MG-1", result.Metadata.SiteSecond)
	assert.Equal(t, 4, result.Metadata.ProductCount)
}

func TestRank(t *testing.T) {
	meta := BuildMetadata(scenarioSignals())

	tests := []struct {
		name     string
		cart     []string
		extra    []string
		limit    int
		expected []string
		sources  []models.RankSource
	}{
		{
			name:     "empty cart uses site wide signals first",
			cart:     []string{},
			limit:    4,
			expected: []string{"SH-1", "MG-1", "HT-1"},
			sources: []models.RankSource{
				models.RankSourceSiteTop, models.RankSourceSiteSecond, models.RankSourceFallback,
			},
		},
		{
			name:     "unknown skus behave like empty cart",
			cart:     []string{"NOPE-1", "NOPE-2"},
			limit:    2,
			expected: []string{"SH-1", "MG-1"},
			sources:  []models.RankSource{models.RankSourceSiteTop, models.RankSourceSiteSecond},
		},
		{
			name:     "leader in cart proposes secondary",
			cart:     []string{"SH-1"},
			limit:    4,
			expected: []string{"SH-2", "MG-1", "HT-1"},
			sources: []models.RankSource{
				models.RankSourceCategorySecondary, models.RankSourceSiteSecond, models.RankSourceFallback,
			},
		},
		{
			name:     "categories follow cart order",
			cart:     []string{"HT-1", "SH-2"},
			limit:    4,
			expected: []string{"SH-1", "MG-1"},
			sources:  []models.RankSource{models.RankSourceCategoryLeader, models.RankSourceSiteSecond},
		},
		{
			name:     "extra categories after cart categories",
			cart:     []string{"SH-2"},
			extra:    []string{"Hats", "Shirts"},
			limit:    4,
			expected: []string{"SH-1", "HT-1", "MG-1"},
			sources: []models.RankSource{
				models.RankSourceCategoryLeader, models.RankSourceCategoryLeader, models.RankSourceSiteSecond,
			},
		},
		{
			name:     "truncated to limit",
			cart:     []string{"SH-2"},
			limit:    1,
			expected: []string{"SH-1"},
			sources:  []models.RankSource{models.RankSourceCategoryLeader},
		},
		{
			name:     "whole catalog in cart",
			cart:     []string{"SH-1", "SH-2", "MG-1", "HT-1"},
			limit:    4,
			expected: []string{},
			sources:  []models.RankSource{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := Rank(meta, tt.cart, tt.extra, tt.limit)

			assert.Equal(t, tt.expected, skusOf(recs))
			sources := make([]models.RankSource, 0, len(recs))
			for _, r := range recs {
				sources = append(sources, r.RankSource)
			}
			assert.Equal(t, tt.sources, sources)
		})
	}
}

func TestNormalizeCart(t *testing.T) {
	assert.Equal(t, []string{"SH-1", "MG-1"}, NormalizeCart([]string{" sh-1", "", "MG-1", "Sh-1 ", "  "}))
	assert.Equal(t, []string{}, NormalizeCart(nil))
}

func TestLimits_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		limits   Limits
		in       int
		expected int
	}{
		{"zero uses default", DefaultLimits(), 0, 4},
		{"negative uses default", DefaultLimits(), -3, 4},
		{"in range kept", DefaultLimits(), 7, 7},
		{"capped", DefaultLimits(), 500, 50},
		{"zero value limits", Limits{}, 0, DefaultLimit},
		{"custom bounds", Limits{Default: 6, Max: 10}, 11, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.limits.Normalize(tt.in))
		})
	}
}

func TestResolver_Resolve_SourceFailure(t *testing.T) {
	builder := NewBuilder(&staticSource{err: errStoreDown}, createTestLogger(t))
	r := NewResolver(builder, DefaultLimits(), createTestLogger(t))

	result, err := r.Resolve(context.Background(), []string{"SH-1"}, 4)

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrSignalSourceUnavailable))
}

// ==========================
// Property Tests
// ==========================

func propertyCatalog() []models.ProductSignal {
	var signals []models.ProductSignal
	categories := []string{"Shirts", "Mugs", "Hats", "posters", "Stickers"}
	for i := 0; i < 40; i++ {
		signals = append(signals, models.ProductSignal{
			SKU:       fmt.Sprintf("P-%02d", i),
			Category:  categories[i%len(categories)],
			UnitsSold: int64((i * 37) % 23),
		})
	}
	return signals
}

func propertyCarts() [][]string {
	carts := [][]string{{}, {"P-00"}, {"p-01", "P-01"}, {"UNKNOWN"}}
	for i := 0; i < 40; i += 3 {
		carts = append(carts, []string{fmt.Sprintf("P-%02d", i), fmt.Sprintf("P-%02d", (i+7)%40)})
	}
	return carts
}

func TestRank_Properties(t *testing.T) {
	meta := BuildMetadata(propertyCatalog())

	for _, raw := range propertyCarts() {
		cart := NormalizeCart(raw)
		for limit := 1; limit <= 8; limit++ {
			recs := Rank(meta, cart, nil, limit)

			assert.LessOrEqual(t, len(recs), limit)

			seen := make(map[string]bool)
			for _, r := range recs {
				assert.NotContains(t, cart, r.SKU, "self recommendation for cart %v", cart)
				assert.False(t, seen[r.SKU], "duplicate %s", r.SKU)
				seen[r.SKU] = true
			}

			assert.Equal(t, recs, Rank(meta, cart, nil, limit), "non deterministic for %v", cart)

			// category matched signals come before any site wide one
			siteWide := false
			for _, r := range recs {
				if r.RankSource.IsSiteWide() {
					siteWide = true
				} else {
					assert.False(t, siteWide, "category signal after site wide for %v", cart)
				}
			}

			// a leader of a cart category is proposed first for that category
			inCart := make(map[string]bool)
			for _, sku := range cart {
				inCart[sku] = true
			}
			for _, c := range CartCategories(meta, cart) {
				leader := meta.CategoryLeaders[c]
				if leader == "" || inCart[leader] || limit < len(CartCategories(meta, cart))*2 {
					continue
				}
				assert.Contains(t, skusOf(recs), leader)
			}
		}
	}
}

func TestRank_EmptyCartIsSiteWideOnly(t *testing.T) {
	meta := BuildMetadata(propertyCatalog())

	for limit := 1; limit <= 6; limit++ {
		for _, r := range Rank(meta, nil, nil, limit) {
			assert.True(t, r.RankSource.IsSiteWide(), "%s from %s", r.SKU, r.RankSource)
		}
	}
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkRank(b *testing.B) {
	meta := BuildMetadata(propertyCatalog())
	cart := NormalizeCart([]string{"P-03", "P-11", "P-27"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(meta, cart, nil, 8)
	}
}

func BenchmarkResolver_Resolve(b *testing.B) {
	r := NewResolver(newStaticBuilder(propertyCatalog()), DefaultLimits(), logger.NewNoOpLogger())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Resolve(ctx, []string{"P-03", "P-11"}, 4); err != nil {
			b.Fatal(err)
		}
	}
}
