// internal/workers/upsell/list-simulation-history/models.go
package listsimulationhistory

import "upsell-workers/internal/models"

type Input struct {
	Limit int `json:"limit"`
}

type Output struct {
	Simulations []models.SimulationRecord `json:"simulations"`
	Count       int                       `json:"count"`
}
