package models

import "time"

// Forecast is the billing-cycle projection the portal shows on the energy
// usage view: how far into the cycle the account is and what the bill is
// projected to cost.
type Forecast struct {
	AccountID  string    `json:"account_id,omitempty"`
	CycleStart time.Time `json:"cycle_start"`
	CycleEnd   time.Time `json:"cycle_end"`
	CostLow    float64   `json:"cost_low"`
	Cost       float64   `json:"cost"`
	CostHigh   float64   `json:"cost_high"`
}
