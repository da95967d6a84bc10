// Package store persists waterfall calculations, tiers, distribution events,
// and audit trails. Audit steps and distribution events are append-only; the
// sole mutation allowed on an event after creation is its payment status.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = eris.New("not found")

// CalculationFilter specifies criteria for listing calculations.
type CalculationFilter struct {
	Status model.CalculationStatus `json:"status,omitempty"`
	FundID string                  `json:"fund_id,omitempty"`
	Limit  int                     `json:"limit,omitempty"`
	Offset int                     `json:"offset,omitempty"`
}

// Store defines the persistence interface for waterfall calculations.
type Store interface {
	// Calculations
	CreateCalculation(ctx context.Context, calc *model.Calculation) error
	GetCalculation(ctx context.Context, id string) (*model.Calculation, error)
	ListCalculations(ctx context.Context, filter CalculationFilter) ([]model.Calculation, error)
	// UpdateCalculationStatus rejects transitions the calculation state
	// machine does not allow.
	UpdateCalculationStatus(ctx context.Context, id string, next model.CalculationStatus) error

	// CommitRun writes an engine result — tiers, distribution events, audit
	// steps, and the resulting status — in a single transaction. A failure
	// anywhere rolls back everything; no partial run is ever visible.
	CommitRun(ctx context.Context, calcID string, result *engine.Result, status model.CalculationStatus) error

	// Run output
	ListTiers(ctx context.Context, calcID string) ([]model.Tier, error)
	ListEvents(ctx context.Context, calcID string) ([]model.DistributionEvent, error)
	ListAuditSteps(ctx context.Context, calcID string) ([]model.TierAuditStep, error)

	// Payment processing
	MarkEventStatus(ctx context.Context, eventID string, next model.PaymentStatus) error
	// ReissueEvent creates a replacement for a failed event. The failed row
	// stays in the ledger.
	ReissueEvent(ctx context.Context, eventID string) (*model.DistributionEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// commitStatus checks that status is a legal CommitRun outcome.
func commitStatus(status model.CalculationStatus) error {
	if status != model.CalcStatusValidated && status != model.CalcStatusValidationFailed {
		return eris.Errorf("store: commit status must be %s or %s, got %s",
			model.CalcStatusValidated, model.CalcStatusValidationFailed, status)
	}
	return nil
}
