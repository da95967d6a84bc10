package model

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// TierType identifies the economics of a waterfall tier.
type TierType string

const (
	TierReturnOfCapital TierType = "return_of_capital"
	TierPreferredReturn TierType = "preferred_return"
	TierCatchUp         TierType = "catch_up"
	TierCarriedInterest TierType = "carried_interest"
	TierPromote         TierType = "promote"
	TierDistribution    TierType = "distribution"
)

// TierTerms is the tagged union of per-type tier parameters. Each variant
// carries only the fields its formula consumes.
type TierTerms interface {
	Type() TierType
}

// ReturnOfCapitalTerms returns contributed capital up to an optional target.
type ReturnOfCapitalTerms struct {
	// TargetAmount caps the tier; zero means distribute all available.
	TargetAmount decimal.Decimal `json:"target_amount"`
}

func (ReturnOfCapitalTerms) Type() TierType { return TierReturnOfCapital }

// PreferredReturnTerms pays the accrued hurdle. The accrual is computed by the
// fee/accrual collaborator and consumed here as a given fact.
type PreferredReturnTerms struct {
	AccruedAmount decimal.Decimal `json:"accrued_amount"`
}

func (PreferredReturnTerms) Type() TierType { return TierPreferredReturn }

// CatchUpTerms pays the GP catch-up. The needed amount is an external input.
type CatchUpTerms struct {
	NeededAmount decimal.Decimal `json:"needed_amount"`
}

func (CatchUpTerms) Type() TierType { return TierCatchUp }

// CarriedInterestTerms splits residual proceeds at the carry rate.
// Rate is a percentage (20 means 20%), up to 6 fractional digits.
type CarriedInterestTerms struct {
	Rate decimal.Decimal `json:"rate"`
}

func (CarriedInterestTerms) Type() TierType { return TierCarriedInterest }

// PromoteTerms behaves like carried interest for real-asset promote structures.
type PromoteTerms struct {
	Rate decimal.Decimal `json:"rate"`
}

func (PromoteTerms) Type() TierType { return TierPromote }

// DistributionTerms is a plain distribution up to an optional target.
type DistributionTerms struct {
	TargetAmount decimal.Decimal `json:"target_amount"`
}

func (DistributionTerms) Type() TierType { return TierDistribution }

// Tier is one level of the waterfall. Level is unique per calculation and
// tiers are processed in strictly ascending Level order. The amount fields are
// written exactly once per calculation run, by the allocation engine.
type Tier struct {
	ID            string    `json:"id"`
	CalculationID string    `json:"calculation_id"`
	Level         int       `json:"level"`
	Name          string    `json:"name"`
	Terms         TierTerms `json:"terms"`

	// LPAllocation and GPAllocation are percentages and must sum to exactly 100.
	LPAllocation decimal.Decimal `json:"lp_allocation"`
	GPAllocation decimal.Decimal `json:"gp_allocation"`

	// ThresholdAmount skips the tier entirely when available cash is below it.
	ThresholdAmount decimal.Decimal `json:"threshold_amount"`

	// Engine outputs.
	ActualAmount      decimal.Decimal `json:"actual_amount"`
	DistributedAmount decimal.Decimal `json:"distributed_amount"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	LPAmount          decimal.Decimal `json:"lp_amount"`
	GPAmount          decimal.Decimal `json:"gp_amount"`
	IsFullyAllocated  bool            `json:"is_fully_allocated"`
}

// ValidateTerms checks the structural invariants a tier must satisfy before
// any cash flows through it.
func (t *Tier) ValidateTerms() error {
	if t.Terms == nil {
		return eris.Errorf("model: tier %d has no terms", t.Level)
	}
	hundred := decimal.NewFromInt(100)
	if !t.LPAllocation.Add(t.GPAllocation).Equal(hundred) {
		return eris.Errorf("model: tier %d LP+GP allocation is %s, want 100",
			t.Level, t.LPAllocation.Add(t.GPAllocation))
	}
	if t.LPAllocation.IsNegative() || t.GPAllocation.IsNegative() {
		return eris.Errorf("model: tier %d has negative allocation split", t.Level)
	}
	if t.ThresholdAmount.IsNegative() {
		return eris.Errorf("model: tier %d has negative threshold", t.Level)
	}
	switch terms := t.Terms.(type) {
	case ReturnOfCapitalTerms:
		if terms.TargetAmount.IsNegative() {
			return eris.Errorf("model: tier %d has negative target", t.Level)
		}
	case PreferredReturnTerms:
		if terms.AccruedAmount.IsNegative() {
			return eris.Errorf("model: tier %d has negative accrued preferred return", t.Level)
		}
	case CatchUpTerms:
		if terms.NeededAmount.IsNegative() {
			return eris.Errorf("model: tier %d has negative catch-up amount", t.Level)
		}
	case CarriedInterestTerms:
		if terms.Rate.IsNegative() || terms.Rate.GreaterThan(hundred) {
			return eris.Errorf("model: tier %d carry rate %s out of range", t.Level, terms.Rate)
		}
	case PromoteTerms:
		if terms.Rate.IsNegative() || terms.Rate.GreaterThan(hundred) {
			return eris.Errorf("model: tier %d promote rate %s out of range", t.Level, terms.Rate)
		}
	case DistributionTerms:
		if terms.TargetAmount.IsNegative() {
			return eris.Errorf("model: tier %d has negative target", t.Level)
		}
	default:
		return eris.Errorf("model: tier %d has unknown terms type %T", t.Level, t.Terms)
	}
	return nil
}
