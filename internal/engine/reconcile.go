package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// reconcile runs the calculation-level cross-checks after every tier has
// been processed. Any failed check blocks the posted transition.
func (e *Engine) reconcile(input Input, result *Result) Reconciliation {
	recon := Reconciliation{Passed: true}

	// (a) Total distributed never exceeds the distributable pool, and any
	// shortfall is surfaced as an explicit residual, never discarded.
	recon.Residual = input.TotalDistributable.Sub(result.TotalDistributed)
	withinPool := result.TotalDistributed.LessThanOrEqual(input.TotalDistributable)
	recon.add("distributed_within_pool", withinPool,
		fmt.Sprintf("distributed %s of %s", result.TotalDistributed, input.TotalDistributable))

	noResidual := recon.Residual.Abs().LessThanOrEqual(e.policy.RoundingTolerance)
	recon.add("no_unallocated_residual", noResidual,
		fmt.Sprintf("residual %s", recon.Residual))

	// (b) Per tier, distribution events sum to the tier's distributed amount.
	eventTotals := make(map[string]decimal.Decimal)
	for i := range result.Events {
		ev := &result.Events[i]
		eventTotals[ev.TierID] = eventTotals[ev.TierID].Add(ev.DistributionAmount)
	}
	for i := range result.Tiers {
		tier := &result.Tiers[i]
		ok := e.withinTolerance(eventTotals[tier.ID], tier.DistributedAmount)
		recon.add("events_match_tier_"+tier.ID, ok,
			fmt.Sprintf("events %s vs distributed %s", eventTotals[tier.ID], tier.DistributedAmount))

		// (c) The fully-allocated flag may never disagree with remaining.
		flagOK := tier.IsFullyAllocated == tier.RemainingAmount.IsZero()
		recon.add("fully_allocated_flag_tier_"+tier.ID, flagOK,
			fmt.Sprintf("remaining %s, flag %t", tier.RemainingAmount, tier.IsFullyAllocated))
	}

	return recon
}

func (r *Reconciliation) add(name string, passed bool, detail string) {
	r.Checks = append(r.Checks, ReconCheck{Name: name, Passed: passed, Detail: detail})
	r.Passed = r.Passed && passed
}

// ResidualError returns the typed residual error when unconsumed cash
// remains beyond tolerance, nil otherwise.
func (r *Reconciliation) ResidualError(tolerance decimal.Decimal) error {
	if r.Residual.GreaterThan(tolerance) {
		return &UnallocatedResidualError{Residual: r.Residual}
	}
	return nil
}

// InconsistencyError returns the typed inconsistency error for the first
// failed reconciliation check other than the residual, nil when clean.
func (r *Reconciliation) InconsistencyError() error {
	for _, check := range r.Checks {
		if check.Passed || check.Name == "no_unallocated_residual" {
			continue
		}
		return &AllocationInconsistencyError{Detail: check.Name + ": " + check.Detail}
	}
	return nil
}
