package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// CalculationStatus represents the lifecycle state of a waterfall calculation.
type CalculationStatus string

const (
	CalcStatusDraft            CalculationStatus = "draft"
	CalcStatusCalculating      CalculationStatus = "calculating"
	CalcStatusValidated        CalculationStatus = "validated"
	CalcStatusValidationFailed CalculationStatus = "validation_failed"
	CalcStatusPosted           CalculationStatus = "posted"
	CalcStatusReversed         CalculationStatus = "reversed"
)

// calcTransitions is the legal state machine. Posted and reversed are terminal;
// a reversal is expressed as a new offsetting calculation, never an edit.
var calcTransitions = map[CalculationStatus][]CalculationStatus{
	CalcStatusDraft:            {CalcStatusCalculating},
	CalcStatusCalculating:      {CalcStatusValidated, CalcStatusValidationFailed},
	CalcStatusValidated:        {CalcStatusPosted},
	CalcStatusValidationFailed: {},
	CalcStatusPosted:           {CalcStatusReversed},
	CalcStatusReversed:         {},
}

// CanTransition reports whether moving from s to next is legal.
func (s CalculationStatus) CanTransition(next CalculationStatus) bool {
	for _, allowed := range calcTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s,
// other than the posted -> reversed offset path.
func (s CalculationStatus) Terminal() bool {
	return len(calcTransitions[s]) == 0
}

// Calculation is one waterfall distribution calculation for a fund event.
// Immutable once posted; corrections happen via a new offsetting calculation.
type Calculation struct {
	ID                 string            `json:"id"`
	FundID             string            `json:"fund_id"`
	Name               string            `json:"name"`
	Status             CalculationStatus `json:"status"`
	TotalDistributable decimal.Decimal   `json:"total_distributable"`
	ReversesID         string            `json:"reverses_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	PostedAt           *time.Time        `json:"posted_at,omitempty"`
}

// Transition validates and applies a status change.
func (c *Calculation) Transition(next CalculationStatus) error {
	if !c.Status.CanTransition(next) {
		return eris.Errorf("model: illegal calculation transition %s -> %s", c.Status, next)
	}
	c.Status = next
	return nil
}
