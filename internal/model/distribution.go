package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks a distribution event through payment processing.
// A failed event is terminal; remediation issues a new event.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentProcessed PaymentStatus = "processed"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentProcessed, PaymentFailed},
	PaymentProcessed: {PaymentPaid, PaymentFailed},
	PaymentPaid:      {},
	PaymentFailed:    {},
}

// CanTransition reports whether moving from s to next is legal.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TaxClassification categorizes a distribution for investor tax reporting.
type TaxClassification string

const (
	TaxReturnOfCapital TaxClassification = "return_of_capital"
	TaxCarriedInterest TaxClassification = "carried_interest"
	TaxOrdinaryIncome  TaxClassification = "ordinary_income"
	TaxMixed           TaxClassification = "mixed"
)

// DistributionEvent is one (tier, investor, commitment) payout. Read-only
// after creation except for the payment status transition.
type DistributionEvent struct {
	ID            string `json:"id"`
	CalculationID string `json:"calculation_id"`
	TierID        string `json:"tier_id"`
	InvestorID    string `json:"investor_id"`
	CommitmentID  string `json:"commitment_id"`

	DistributionAmount   decimal.Decimal `json:"distribution_amount"`
	AllocationPercentage decimal.Decimal `json:"allocation_percentage"` // share of tier, up to 6dp
	CumulativeAmount     decimal.Decimal `json:"cumulative_amount"`     // running investor total in this calculation
	WithholdingAmount    decimal.Decimal `json:"withholding_amount"`
	NetDistribution      decimal.Decimal `json:"net_distribution"`

	TaxClassification TaxClassification `json:"tax_classification"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	CreatedAt         time.Time         `json:"created_at"`
}

// MarkPayment validates and applies a payment status transition.
func (e *DistributionEvent) MarkPayment(next PaymentStatus) error {
	if !e.PaymentStatus.CanTransition(next) {
		return eris.Errorf("model: illegal payment transition %s -> %s for event %s",
			e.PaymentStatus, next, e.ID)
	}
	e.PaymentStatus = next
	return nil
}

// Reissue creates a replacement event for a failed payment. The original
// stays in the ledger; the replacement starts over at pending.
func (e *DistributionEvent) Reissue(newID string, now time.Time) (*DistributionEvent, error) {
	if e.PaymentStatus != PaymentFailed {
		return nil, eris.Errorf("model: cannot reissue event %s in status %s", e.ID, e.PaymentStatus)
	}
	clone := *e
	clone.ID = newID
	clone.PaymentStatus = PaymentPending
	clone.CreatedAt = now
	return &clone, nil
}
