// internal/models/simulation.go
package models

import "time"

const CriteriaSource = "sales_performance + cart_context"

// Criteria is derived from a ShopperProfile and the requested limit only.
type Criteria struct {
	Categories []string `json:"categories"`
	Limit      int      `json:"limit"`
	Budget     string   `json:"budget,omitempty"`
	Intent     string   `json:"intent,omitempty"`
	Source     string   `json:"source"`
}

// MetadataUsed records which ranking signals a simulation was computed against.
type MetadataUsed struct {
	SiteTop    string `json:"site_top"`
	SiteSecond string `json:"site_second"`
	Category   string `json:"category"`
}

type SimulationResult struct {
	ID              *int64                 `json:"id"`
	Reference       string                 `json:"reference,omitempty"`
	CreatedAt       *time.Time             `json:"created_at,omitempty"`
	Persisted       bool                   `json:"persisted"`
	Profile         ShopperProfile         `json:"profile"`
	CartSKUs        []string               `json:"cart_skus"`
	Criteria        Criteria               `json:"criteria"`
	Recommendations []UpsellRecommendation `json:"recommendations"`
	Rationale       []string               `json:"rationale"`
	MetadataUsed    MetadataUsed           `json:"metadata_used"`
}

// SimulationRecord is a persisted simulation. It is never updated.
type SimulationRecord struct {
	ID              int64                  `json:"id"`
	Reference       string                 `json:"reference"`
	CreatedAt       time.Time              `json:"created_at"`
	CreatedBy       *string                `json:"created_by"`
	Profile         ShopperProfile         `json:"profile"`
	CartSKUs        []string               `json:"cart_skus"`
	Criteria        Criteria               `json:"criteria"`
	Recommendations []UpsellRecommendation `json:"recommendations"`
	Rationale       []string               `json:"rationale"`
	MetadataUsed    MetadataUsed           `json:"metadata_used"`
}

// ResolveResult is the response of ResolveCartUpsells.
type ResolveResult struct {
	Upsells  []UpsellRecommendation `json:"upsells"`
	Metadata MetadataSummary        `json:"metadata"`
}
