package upsell

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-workers/internal/models"
)

// ==========================
// Core Functionality Tests
// ==========================

func TestBuildMetadata_Scenario(t *testing.T) {
	meta := BuildMetadata(scenarioSignals())

	assert.Equal(t, "SH-1", meta.SiteTop)
	assert.Equal(t, "MG-1", meta.SiteSecond)
	assert.Equal(t, map[string]string{"Shirts": "SH-1", "Mugs": "MG-1", "Hats": "HT-1"}, meta.CategoryLeaders)
	assert.Equal(t, map[string]string{"Shirts": "SH-2"}, meta.CategorySecondaries)

	sh1 := meta.Products["SH-1"]
	assert.True(t, sh1.IsCategoryLeader)
	assert.True(t, sh1.IsSiteTop)
	assert.False(t, sh1.IsCategorySecondary)
	assert.True(t, meta.Products["SH-2"].IsCategorySecondary)
	assert.True(t, meta.Products["MG-1"].IsSiteSecond)
}

func TestBuildMetadata_Rules(t *testing.T) {
	tests := []struct {
		name     string
		signals  []models.ProductSignal
		validate func(t *testing.T, meta *models.RankingMetadata)
	}{
		{
			name:    "empty catalog",
			signals: nil,
			validate: func(t *testing.T, meta *models.RankingMetadata) {
				assert.Empty(t, meta.SiteTop)
				assert.Empty(t, meta.SiteSecond)
				assert.Empty(t, meta.CategoryLeaders)
				assert.NotNil(t, meta.Products)
			},
		},
		{
			name: "sku normalized and first occurrence wins",
			signals: []models.ProductSignal{
				{SKU: " ab-1 ", Category: "Cards", UnitsSold: 3},
				{SKU: "AB-1", Category: "Other", UnitsSold: 99},
			},
			validate: func(t *testing.T, meta *models.RankingMetadata) {
				require.Contains(t, meta.Products, "AB-1")
				assert.Equal(t, "Cards", meta.Products["AB-1"].Category)
				assert.Len(t, meta.Products, 1)
				assert.Equal(t, "AB-1", meta.CategoryLeaders["Cards"])
			},
		},
		{
			name: "unsold products are catalogued but never ranked",
			signals: []models.ProductSignal{
				{SKU: "A", Category: "Cards", UnitsSold: 0},
				{SKU: "B", Category: "Cards", UnitsSold: 1},
			},
			validate: func(t *testing.T, meta *models.RankingMetadata) {
				assert.Contains(t, meta.Products, "A")
				assert.Equal(t, "B", meta.CategoryLeaders["Cards"])
				assert.NotContains(t, meta.CategorySecondaries, "Cards")
				assert.Equal(t, "B", meta.SiteTop)
				assert.Empty(t, meta.SiteSecond)
			},
		},
		{
			name: "ties broken by sku",
			signals: []models.ProductSignal{
				{SKU: "Z", Category: "Cards", UnitsSold: 5},
				{SKU: "M", Category: "Cards", UnitsSold: 5},
				{SKU: "A", Category: "Pens", UnitsSold: 5},
			},
			validate: func(t *testing.T, meta *models.RankingMetadata) {
				assert.Equal(t, "A", meta.SiteTop)
				assert.Equal(t, "M", meta.SiteSecond)
				assert.Equal(t, "M", meta.CategoryLeaders["Cards"])
				assert.Equal(t, "Z", meta.CategorySecondaries["Cards"])
			},
		},
		{
			name: "uncategorized products still count site wide",
			signals: []models.ProductSignal{
				{SKU: "GIFT-CARD", UnitsSold: 500},
				{SKU: "A", Category: "Cards", UnitsSold: 5},
			},
			validate: func(t *testing.T, meta *models.RankingMetadata) {
				assert.Equal(t, "GIFT-CARD", meta.SiteTop)
				assert.NotContains(t, meta.CategoryLeaders, "")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, BuildMetadata(tt.signals))
		})
	}
}

func TestBuildMetadata_Invariants(t *testing.T) {
	meta := BuildMetadata(scenarioSignals())

	for category, sku := range meta.CategoryLeaders {
		assert.Equal(t, category, meta.Products[sku].Category, "leader %s", sku)
		if second, ok := meta.CategorySecondaries[category]; ok {
			assert.NotEqual(t, sku, second)
			assert.Equal(t, category, meta.Products[second].Category)
		}
	}
	assert.NotEqual(t, meta.SiteTop, meta.SiteSecond)
}

func TestBuildMetadata_OrderIndependent(t *testing.T) {
	forward := scenarioSignals()
	reversed := make([]models.ProductSignal, len(forward))
	for i, s := range forward {
		reversed[len(forward)-1-i] = s
	}

	assert.Equal(t, BuildMetadata(forward), BuildMetadata(reversed))
}

func TestSortedCategories(t *testing.T) {
	meta := BuildMetadata([]models.ProductSignal{
		{SKU: "1", Category: "mugs", UnitsSold: 1},
		{SKU: "2", Category: "Apparel", UnitsSold: 1},
		{SKU: "3", Category: "Mugs", UnitsSold: 1},
		{SKU: "4", Category: "banners", UnitsSold: 0},
	})

	assert.Equal(t, []string{"Apparel", "banners", "Mugs", "mugs"}, SortedCategories(meta))
}

func TestBuilder_Build(t *testing.T) {
	t.Run("source failure is signal source unavailable", func(t *testing.T) {
		b := NewBuilder(&staticSource{err: errStoreDown}, createTestLogger(t))

		meta, err := b.Build(context.Background())

		assert.Nil(t, meta)
		assert.True(t, errors.Is(err, ErrSignalSourceUnavailable))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("reads the source on every call", func(t *testing.T) {
		src := &staticSource{signals: scenarioSignals()}
		b := NewBuilder(src, createTestLogger(t))

		_, err := b.Build(context.Background())
		require.NoError(t, err)
		_, err = b.Build(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, src.Calls())
	})
}
