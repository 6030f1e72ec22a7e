package domain

import "github.com/shopspring/decimal"

// PredictionStatus classifies forecast demand against current stock
type PredictionStatus string

const (
	StatusSurplus  PredictionStatus = "surplus"
	StatusDeficit  PredictionStatus = "deficit"
	StatusBalanced PredictionStatus = "balanced"
)

// Prediction is a forecast for one item over a date range. Read-only to the client.
type Prediction struct {
	ItemID            string          `json:"item_id"`
	StartDate         string          `json:"start_date"`
	EndDate           string          `json:"end_date"`
	PredictedQuantity decimal.Decimal `json:"predicted_quantity"`
	CurrentStock      int             `json:"current_stock"`
	// Difference is absent on some backend pages; see SignedDifference
	Difference decimal.NullDecimal `json:"difference"`
	Status            string          `json:"status"`
}

// Classify derives the status from the signed difference (predicted - current).
// Demand above stock is a deficit; differences within tolerance are balanced.
// The backend's Status, when sent, takes precedence over this.
func (p Prediction) Classify(tolerance decimal.Decimal) PredictionStatus {
	diff := p.SignedDifference()
	if diff.Abs().LessThanOrEqual(tolerance.Abs()) {
		return StatusBalanced
	}
	if diff.IsPositive() {
		return StatusDeficit
	}
	return StatusSurplus
}

// ComputedDifference recomputes predicted - current from the other fields
func (p Prediction) ComputedDifference() decimal.Decimal {
	return p.PredictedQuantity.Sub(decimal.NewFromInt(int64(p.CurrentStock)))
}

// SignedDifference is the backend's difference when present, including an explicit zero,
// and the recomputed one otherwise
func (p Prediction) SignedDifference() decimal.Decimal {
	if p.Difference.Valid {
		return p.Difference.Decimal
	}
	return p.ComputedDifference()
}
