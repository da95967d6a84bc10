package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// inputValidationStep builds audit step 1 for a tier. Run before any cash
// moves; a failed check here stops the whole calculation.
func (e *Engine) inputValidationStep(calcID string, tier *model.Tier) model.TierAuditStep {
	splitSum := tier.LPAllocation.Add(tier.GPAllocation)

	checks := map[string]bool{
		"allocation_sums_to_100": splitSum.Equal(hundred),
		"allocation_non_negative": !tier.LPAllocation.IsNegative() &&
			!tier.GPAllocation.IsNegative(),
		"threshold_non_negative": !tier.ThresholdAmount.IsNegative(),
		"terms_well_formed":      tier.ValidateTerms() == nil,
	}

	// Carry tiers must carve the GP share at exactly the stated rate.
	switch terms := tier.Terms.(type) {
	case model.CarriedInterestTerms:
		checks["gp_split_matches_carry_rate"] = tier.GPAllocation.Equal(terms.Rate)
	case model.PromoteTerms:
		checks["gp_split_matches_promote_rate"] = tier.GPAllocation.Equal(terms.Rate)
	}

	return e.step(calcID, tier, model.StepInputValidation,
		"lp_allocation + gp_allocation == 100; amounts >= 0",
		map[string]string{
			"lp_allocation":    tier.LPAllocation.String(),
			"gp_allocation":    tier.GPAllocation.String(),
			"threshold_amount": tier.ThresholdAmount.String(),
		},
		map[string]string{
			"allocation_sum": splitSum.String(),
		},
		checks,
	)
}

// auditTier builds audit steps 2 through 5 for an allocated tier. Steps are
// appended in order and never rewritten; a correction means a new
// calculation, not an edited row.
func (e *Engine) auditTier(calcID string, tier *model.Tier, alloc tierAllocation, events []model.DistributionEvent) []model.TierAuditStep {
	steps := []model.TierAuditStep{
		e.inputValidationStep(calcID, tier),
		e.tierCalculationStep(calcID, tier, alloc),
		e.lpGPAllocationStep(calcID, tier),
		e.distributionValidationStep(calcID, tier, events),
		e.finalReconciliationStep(calcID, tier),
	}
	return steps
}

func (e *Engine) tierCalculationStep(calcID string, tier *model.Tier, alloc tierAllocation) model.TierAuditStep {
	checks := map[string]bool{
		"distributed_non_negative":     !tier.DistributedAmount.IsNegative(),
		"distributed_within_available": tier.DistributedAmount.LessThanOrEqual(tier.ActualAmount),
	}

	outputs := map[string]string{
		"distributed_amount": tier.DistributedAmount.String(),
		"remaining_amount":   tier.RemainingAmount.String(),
	}
	if alloc.Skipped {
		outputs["skipped"] = "true"
	}

	return e.step(calcID, tier, model.StepTierCalculation, alloc.Formula, alloc.Inputs, outputs, checks)
}

func (e *Engine) lpGPAllocationStep(calcID string, tier *model.Tier) model.TierAuditStep {
	split := tier.LPAmount.Add(tier.GPAmount)

	return e.step(calcID, tier, model.StepLPGPAllocation,
		"lp = distributed × lp_allocation/100; gp = distributed × gp_allocation/100",
		map[string]string{
			"distributed_amount": tier.DistributedAmount.String(),
			"lp_allocation":      tier.LPAllocation.String(),
			"gp_allocation":      tier.GPAllocation.String(),
		},
		map[string]string{
			"lp_amount": tier.LPAmount.String(),
			"gp_amount": tier.GPAmount.String(),
		},
		map[string]bool{
			"split_sums_to_distributed": e.withinTolerance(split, tier.DistributedAmount),
		},
	)
}

func (e *Engine) distributionValidationStep(calcID string, tier *model.Tier, events []model.DistributionEvent) model.TierAuditStep {
	eventTotal := decimal.Zero
	for i := range events {
		eventTotal = eventTotal.Add(events[i].DistributionAmount)
	}

	checks := map[string]bool{
		"distributed_lte_actual": tier.DistributedAmount.LessThanOrEqual(tier.ActualAmount),
		"remaining_consistent":   tier.RemainingAmount.Equal(tier.ActualAmount.Sub(tier.DistributedAmount)),
		"fully_allocated_flag":   tier.IsFullyAllocated == tier.RemainingAmount.IsZero(),
		"events_sum_to_distributed": len(events) == 0 && tier.DistributedAmount.IsZero() ||
			e.withinTolerance(eventTotal, tier.DistributedAmount),
	}

	return e.step(calcID, tier, model.StepDistributionValidation,
		"distributed <= actual; remaining == actual - distributed; Σ events == distributed",
		map[string]string{
			"actual_amount":      tier.ActualAmount.String(),
			"distributed_amount": tier.DistributedAmount.String(),
			"event_count":        fmt.Sprintf("%d", len(events)),
		},
		map[string]string{
			"remaining_amount": tier.RemainingAmount.String(),
			"event_total":      eventTotal.String(),
		},
		checks,
	)
}

func (e *Engine) finalReconciliationStep(calcID string, tier *model.Tier) model.TierAuditStep {
	recomputed := tier.LPAmount.Add(tier.GPAmount)
	diff := recomputed.Sub(tier.DistributedAmount).Abs()
	match := diff.LessThanOrEqual(e.policy.RoundingTolerance)

	status := "MATCH"
	if !match {
		status = "MISMATCH"
	}

	return e.step(calcID, tier, model.StepFinalReconciliation,
		"|lp_amount + gp_amount - distributed| <= tolerance",
		map[string]string{
			"lp_amount":          tier.LPAmount.String(),
			"gp_amount":          tier.GPAmount.String(),
			"distributed_amount": tier.DistributedAmount.String(),
			"tolerance":          e.policy.RoundingTolerance.String(),
		},
		map[string]string{
			"difference": diff.String(),
			"result":     status,
		},
		map[string]bool{
			"reconciliation_match": match,
		},
	)
}

func (e *Engine) step(calcID string, tier *model.Tier, number int, formula string, inputs, outputs map[string]string, checks map[string]bool) model.TierAuditStep {
	passed := true
	for _, ok := range checks {
		passed = passed && ok
	}
	return model.TierAuditStep{
		CalculationID:      calcID,
		TierID:             tier.ID,
		TierName:           tier.Name,
		StepNumber:         number,
		StepName:           model.StepName(number),
		Formula:            formula,
		Inputs:             inputs,
		Outputs:            outputs,
		ValidationResults:  checks,
		IsValidationPassed: passed,
		CreatedAt:          e.now,
	}
}

// Summarize rolls audit steps up into the calculation-level validation
// summary. It is deterministic over persisted rows: regenerating the summary
// from stored steps yields the same outcome as the inline run.
func Summarize(steps []model.TierAuditStep) model.ValidationSummary {
	summary := model.ValidationSummary{TotalSteps: len(steps)}

	ordered := make([]model.TierAuditStep, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].TierID != ordered[b].TierID {
			return ordered[a].TierID < ordered[b].TierID
		}
		return ordered[a].StepNumber < ordered[b].StepNumber
	})

	for i := range ordered {
		step := &ordered[i]
		if step.IsValidationPassed {
			summary.PassedSteps++
			continue
		}
		summary.FailedSteps++
		for _, check := range step.FailedChecks() {
			summary.Issues = append(summary.Issues, model.ValidationIssue{
				TierID:   step.TierID,
				TierName: step.TierName,
				StepName: step.StepName,
				Issue:    check,
			})
		}
	}

	if summary.TotalSteps > 0 {
		rate := float64(summary.PassedSteps) / float64(summary.TotalSteps)
		summary.PassRate = math.Round(rate*10000) / 10000
	}
	return summary
}
