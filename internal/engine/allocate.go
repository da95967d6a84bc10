package engine

import (
	"github.com/shopspring/decimal"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// tierAllocation captures what the allocator did to one tier, for the
// Tier Calculation audit step.
type tierAllocation struct {
	Formula string
	Inputs  map[string]string
	Skipped bool
}

// allocateTier computes a tier's distributed amount from the cash available
// to it and writes the engine-owned tier fields. Unconsumed cash carries
// forward to the next tier via the caller.
func (e *Engine) allocateTier(tier *model.Tier, available decimal.Decimal) tierAllocation {
	tier.ActualAmount = available

	alloc := tierAllocation{
		Inputs: map[string]string{
			"available_amount": available.String(),
		},
	}

	// A tier below its threshold is skipped outright: it distributes
	// nothing and the full amount flows to the next tier.
	if tier.ThresholdAmount.IsPositive() && available.LessThan(tier.ThresholdAmount) {
		alloc.Skipped = true
		alloc.Formula = "skipped: available < threshold"
		alloc.Inputs["threshold_amount"] = tier.ThresholdAmount.String()
		e.finishTier(tier, decimal.Zero)
		return alloc
	}

	var distributed decimal.Decimal
	switch terms := tier.Terms.(type) {
	case model.ReturnOfCapitalTerms:
		distributed = capToTarget(available, terms.TargetAmount)
		alloc.Formula = "distributed = min(available, target)"
		alloc.Inputs["target_amount"] = terms.TargetAmount.String()

	case model.DistributionTerms:
		distributed = capToTarget(available, terms.TargetAmount)
		alloc.Formula = "distributed = min(available, target)"
		alloc.Inputs["target_amount"] = terms.TargetAmount.String()

	case model.PreferredReturnTerms:
		distributed = decimal.Min(available, terms.AccruedAmount)
		alloc.Formula = "distributed = min(available, accrued_preferred_return)"
		alloc.Inputs["accrued_preferred_return"] = terms.AccruedAmount.String()

	case model.CatchUpTerms:
		distributed = decimal.Min(available, terms.NeededAmount)
		alloc.Formula = "distributed = min(available, catch_up_needed)"
		alloc.Inputs["catch_up_needed"] = terms.NeededAmount.String()

	case model.CarriedInterestTerms:
		// The residual tier consumes everything; the rate drives the GP
		// carve via the tier's GP split, validated against the rate.
		distributed = available
		alloc.Formula = "distributed = available; gp = distributed × rate/100"
		alloc.Inputs["carried_interest_rate"] = terms.Rate.String()

	case model.PromoteTerms:
		distributed = available
		alloc.Formula = "distributed = available; gp = distributed × rate/100"
		alloc.Inputs["promote_rate"] = terms.Rate.String()
	}

	e.finishTier(tier, distributed)
	return alloc
}

// finishTier writes the derived tier amounts from a distributed total.
func (e *Engine) finishTier(tier *model.Tier, distributed decimal.Decimal) {
	tier.DistributedAmount = distributed
	tier.RemainingAmount = tier.ActualAmount.Sub(distributed)
	tier.IsFullyAllocated = tier.RemainingAmount.IsZero()
	tier.LPAmount = distributed.Mul(tier.LPAllocation).Div(hundred)
	tier.GPAmount = distributed.Mul(tier.GPAllocation).Div(hundred)
}

// capToTarget caps available cash at the target; a zero target means the
// tier absorbs everything available.
func capToTarget(available, target decimal.Decimal) decimal.Decimal {
	if target.IsZero() {
		return available
	}
	return decimal.Min(available, target)
}
