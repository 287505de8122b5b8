// internal/workers/upsell/resolve-cart-upsells/models.go
package resolvecartupsells

import "upsell-workers/internal/models"

type Input struct {
	SKUs  []string `json:"skus"`
	Limit int      `json:"limit"`
}

type Output struct {
	Upsells  []models.UpsellRecommendation `json:"upsells"`
	Metadata models.MetadataSummary        `json:"metadata"`
	Count    int                           `json:"count"`
}
