package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InputValidationError reports malformed calculation input. The calculation
// is rejected before any cash moves; when tier definitions are at fault the
// accompanying Result still carries the failed Input Validation audit rows.
type InputValidationError struct {
	TierLevel int // 0 when the problem is not tied to one tier
	Reason    string
}

func (e *InputValidationError) Error() string {
	if e.TierLevel > 0 {
		return fmt.Sprintf("engine: input validation failed at tier %d: %s", e.TierLevel, e.Reason)
	}
	return fmt.Sprintf("engine: input validation failed: %s", e.Reason)
}

// AllocationInconsistencyError reports arithmetic that broke a tier
// invariant (distributed > actual, or a reconciliation mismatch beyond
// tolerance). Never auto-corrected; a fresh calculation is required.
type AllocationInconsistencyError struct {
	TierID     string
	StepNumber int
	Detail     string
}

func (e *AllocationInconsistencyError) Error() string {
	return fmt.Sprintf("engine: allocation inconsistency at tier %s step %d: %s",
		e.TierID, e.StepNumber, e.Detail)
}

// UnallocatedResidualError reports cash left over after the final tier.
// The residual is surfaced, never silently dropped, and blocks posting.
type UnallocatedResidualError struct {
	Residual decimal.Decimal
}

func (e *UnallocatedResidualError) Error() string {
	return fmt.Sprintf("engine: %s remains unallocated after the final tier", e.Residual)
}
