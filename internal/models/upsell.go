// internal/models/upsell.go
package models

// RankSource identifies which signal put a SKU into a recommendation list.
type RankSource string

const (
	RankSourceCategoryLeader    RankSource = "category_leader"
	RankSourceCategorySecondary RankSource = "category_secondary"
	RankSourceSiteTop           RankSource = "site_top"
	RankSourceSiteSecond        RankSource = "site_second"
	RankSourceFallback          RankSource = "fallback"
)

// IsSiteWide reports whether the source is a catalog-wide signal rather than a
// category-matched one.
func (s RankSource) IsSiteWide() bool {
	switch s {
	case RankSourceSiteTop, RankSourceSiteSecond, RankSourceFallback:
		return true
	}
	return false
}

// ProductSignal is one row of the catalog signal store.
type ProductSignal struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	UnitsSold int64   `json:"units_sold"`
}

// ProductMeta is a product as seen by the ranking metadata, with derived rank flags.
type ProductMeta struct {
	SKU                 string  `json:"sku"`
	Name                string  `json:"name"`
	Category            string  `json:"category"`
	Price               float64 `json:"price"`
	UnitsSold           int64   `json:"units_sold"`
	IsCategoryLeader    bool    `json:"is_category_leader"`
	IsCategorySecondary bool    `json:"is_category_secondary"`
	IsSiteTop           bool    `json:"is_site_top"`
	IsSiteSecond        bool    `json:"is_site_second"`
}

// RankingMetadata is the per-request snapshot shared by the resolver and simulator.
type RankingMetadata struct {
	CategoryLeaders     map[string]string      `json:"category_leaders"`
	CategorySecondaries map[string]string      `json:"category_secondaries"`
	SiteTop             string                 `json:"site_top"`
	SiteSecond          string                 `json:"site_second"`
	Products            map[string]ProductMeta `json:"products"`
}

// Summary drops the product map, which is too large to return to callers.
func (m *RankingMetadata) Summary() MetadataSummary {
	return MetadataSummary{
		CategoryLeaders:     m.CategoryLeaders,
		CategorySecondaries: m.CategorySecondaries,
		SiteTop:             m.SiteTop,
		SiteSecond:          m.SiteSecond,
		ProductCount:        len(m.Products),
	}
}

type MetadataSummary struct {
	CategoryLeaders     map[string]string `json:"category_leaders"`
	CategorySecondaries map[string]string `json:"category_secondaries"`
	SiteTop             string            `json:"site_top"`
	SiteSecond          string            `json:"site_second"`
	ProductCount        int               `json:"product_count"`
}

// UpsellRecommendation is a single proposed SKU. Reasons is only filled by the
// simulator.
type UpsellRecommendation struct {
	SKU        string     `json:"sku"`
	RankSource RankSource `json:"rank_source"`
	Category   string     `json:"category,omitempty"`
	Reasons    []string   `json:"reasons,omitempty"`
}

// UpsellMetadataView is the read-only introspection shape used to populate UIs.
type UpsellMetadataView struct {
	Categories []string `json:"categories"`
	SiteTop    string   `json:"site_top"`
	SiteSecond string   `json:"site_second"`
}
