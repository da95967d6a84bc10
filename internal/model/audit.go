package model

import (
	"sort"
	"time"
)

// Audit step numbers. Every tier gets exactly these five, in this order.
const (
	StepInputValidation        = 1
	StepTierCalculation        = 2
	StepLPGPAllocation         = 3
	StepDistributionValidation = 4
	StepFinalReconciliation    = 5
)

// StepName returns the canonical name for an audit step number.
func StepName(n int) string {
	switch n {
	case StepInputValidation:
		return "Input Validation"
	case StepTierCalculation:
		return "Tier Calculation"
	case StepLPGPAllocation:
		return "LP/GP Allocation"
	case StepDistributionValidation:
		return "Distribution Validation"
	case StepFinalReconciliation:
		return "Final Reconciliation"
	default:
		return "Unknown"
	}
}

// TierAuditStep is one immutable row of the per-tier audit trail, keyed by
// (CalculationID, TierID, StepNumber). Inputs and outputs hold decimal values
// as strings so replayed rows compare exactly.
type TierAuditStep struct {
	CalculationID      string            `json:"calculation_id"`
	TierID             string            `json:"tier_id"`
	TierName           string            `json:"tier_name"`
	StepNumber         int               `json:"step_number"`
	StepName           string            `json:"step_name"`
	Formula            string            `json:"formula"`
	Inputs             map[string]string `json:"inputs"`
	Outputs            map[string]string `json:"outputs"`
	ValidationResults  map[string]bool   `json:"validation_results"`
	IsValidationPassed bool              `json:"is_validation_passed"`
	CreatedAt          time.Time         `json:"created_at"`
}

// FailedChecks returns the names of validation checks that failed, sorted
// for stable reporting.
func (s *TierAuditStep) FailedChecks() []string {
	var failed []string
	for name, ok := range s.ValidationResults {
		if !ok {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// ValidationIssue identifies one failed check with full tier and step context.
type ValidationIssue struct {
	TierID   string `json:"tier_id"`
	TierName string `json:"tier_name"`
	StepName string `json:"step_name"`
	Issue    string `json:"issue"`
}

// ValidationSummary is the calculation-level roll-up of all audit steps.
// A calculation is valid iff FailedSteps == 0.
type ValidationSummary struct {
	TotalSteps  int               `json:"total_steps"`
	PassedSteps int               `json:"passed_steps"`
	FailedSteps int               `json:"failed_steps"`
	PassRate    float64           `json:"pass_rate"`
	Issues      []ValidationIssue `json:"issues,omitempty"`
}

// Valid reports whether every audit step passed.
func (s *ValidationSummary) Valid() bool {
	return s.FailedSteps == 0
}
