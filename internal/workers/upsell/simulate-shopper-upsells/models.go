// internal/workers/upsell/simulate-shopper-upsells/models.go
package simulateshopperupsells

import "upsell-workers/internal/models"

type Input struct {
	Profile   models.ShopperProfile `json:"profile"`
	Limit     int                   `json:"limit"`
	CreatedBy *string               `json:"createdBy"`
}

// Output mirrors the simulation id at the top level so BPMN gateways can
// branch on it without a FEEL path into the result.
type Output struct {
	Simulation   *models.SimulationResult `json:"simulation"`
	SimulationID *int64                   `json:"simulationId"`
	Persisted    bool                     `json:"persisted"`
}
