// Package engine implements the waterfall distribution allocation core: it
// consumes an ordered tier catalog plus distributable cash, allocates each
// tier with carry-forward of unconsumed cash, apportions tier proceeds across
// investor commitments, and emits an immutable five-step audit trail per tier
// together with calculation-level reconciliation.
//
// The engine is a pure function over its input. It holds no locks, spawns no
// goroutines, and touches no storage; atomicity belongs to the caller's
// persistence layer. All arithmetic is fixed-point decimal.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Policy holds the tunable knobs of a calculation run.
type Policy struct {
	// RoundingTolerance bounds acceptable rounding drift in reconciliation
	// checks. Default 0.01 currency units.
	RoundingTolerance decimal.Decimal

	// MoneyScale is the number of fractional digits for payable amounts.
	MoneyScale int32

	// IncomeClassification is the tax treatment of preferred-return and
	// catch-up proceeds, per fund configuration.
	IncomeClassification model.TaxClassification
}

// DefaultPolicy returns the standard policy: 0.01 tolerance, 2-digit money,
// ordinary income treatment.
func DefaultPolicy() Policy {
	return Policy{
		RoundingTolerance:    decimal.New(1, -2),
		MoneyScale:           2,
		IncomeClassification: model.TaxOrdinaryIncome,
	}
}

func (p Policy) normalized() Policy {
	if p.RoundingTolerance.IsZero() || p.RoundingTolerance.IsNegative() {
		p.RoundingTolerance = decimal.New(1, -2)
	}
	if p.MoneyScale <= 0 {
		p.MoneyScale = 2
	}
	if p.IncomeClassification == "" {
		p.IncomeClassification = model.TaxOrdinaryIncome
	}
	return p
}

// Input is everything a calculation run consumes. Accrued preferred return
// and catch-up amounts arrive inside tier terms, pre-computed by the
// fee/accrual collaborator.
type Input struct {
	CalculationID      string
	FundID             string
	TotalDistributable decimal.Decimal
	Tiers              []model.Tier
	Commitments        []model.Commitment
	Basis              model.AllocationBasis

	// GPID identifies the general partner for GP-side distribution events.
	GPID string
}

// Reconciliation is the calculation-level cross-check result.
type Reconciliation struct {
	Checks   []ReconCheck    `json:"checks"`
	Passed   bool            `json:"passed"`
	Residual decimal.Decimal `json:"residual"`
}

// ReconCheck is one named reconciliation invariant.
type ReconCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the complete output of a calculation run. Tiers, events, and
// audit steps must be committed as one atomic unit by the caller.
type Result struct {
	Tiers          []model.Tier
	Events         []model.DistributionEvent
	AuditSteps     []model.TierAuditStep
	Summary        model.ValidationSummary
	Reconciliation Reconciliation

	TotalDistributed decimal.Decimal
	LPTotal          decimal.Decimal
	GPTotal          decimal.Decimal
}

// Engine runs waterfall calculations under a fixed policy.
type Engine struct {
	policy Policy
	now    time.Time     // injectable for testing
	newID  func() string // injectable for testing
	log    *zap.Logger
}

// New creates an engine with the given policy.
func New(policy Policy) *Engine {
	return &Engine{
		policy: policy.normalized(),
		now:    time.Now().UTC(),
		newID:  func() string { return uuid.New().String() },
		log:    zap.L(),
	}
}

// Policy returns the engine's normalized policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// WithNow fixes the audit timestamp, for testing.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = t
	return e
}

// WithIDFunc overrides event ID generation, for deterministic tests.
func (e *Engine) WithIDFunc(fn func() string) *Engine {
	e.newID = fn
	return e
}

// Run executes the full waterfall for one calculation. On structural input
// errors (empty tiers, out-of-order levels, negative cash) it returns a nil
// Result and an *InputValidationError. On per-tier definition errors it
// returns a Result whose Input Validation audit steps record the failures,
// alongside the *InputValidationError, so callers can persist the trail and
// mark the calculation validation_failed.
func (e *Engine) Run(input Input) (*Result, error) {
	if err := e.validateStructure(input); err != nil {
		return nil, err
	}

	// Tiers may arrive without identifiers; events and audit rows key on
	// them, so assign before anything references them.
	for i := range input.Tiers {
		if input.Tiers[i].ID == "" {
			input.Tiers[i].ID = e.newID()
		}
		input.Tiers[i].CalculationID = input.CalculationID
	}

	// Tier-definition validation produces Input Validation audit rows even
	// when it fails; failures stop the run before any cash is allocated.
	if result, err := e.validateTiers(input); err != nil {
		return result, err
	}

	result := &Result{
		TotalDistributed: decimal.Zero,
		LPTotal:          decimal.Zero,
		GPTotal:          decimal.Zero,
	}

	cumulative := make(map[string]decimal.Decimal) // investor -> running total

	available := input.TotalDistributable
	for i := range input.Tiers {
		tier := input.Tiers[i] // copy; engine output owns the mutation

		alloc := e.allocateTier(&tier, available)
		available = available.Sub(tier.DistributedAmount)

		events := e.apportionTier(input, &tier, cumulative)
		result.Events = append(result.Events, events...)

		steps := e.auditTier(input.CalculationID, &tier, alloc, events)
		result.AuditSteps = append(result.AuditSteps, steps...)

		result.Tiers = append(result.Tiers, tier)
		result.TotalDistributed = result.TotalDistributed.Add(tier.DistributedAmount)
		result.LPTotal = result.LPTotal.Add(tier.LPAmount)
		result.GPTotal = result.GPTotal.Add(tier.GPAmount)
	}

	result.Reconciliation = e.reconcile(input, result)
	result.Summary = Summarize(result.AuditSteps)

	e.log.Info("waterfall calculation complete",
		zap.String("calculation_id", input.CalculationID),
		zap.String("fund_id", input.FundID),
		zap.String("total_distributable", input.TotalDistributable.String()),
		zap.String("total_distributed", result.TotalDistributed.String()),
		zap.String("residual", result.Reconciliation.Residual.String()),
		zap.Int("failed_steps", result.Summary.FailedSteps),
		zap.Bool("reconciled", result.Reconciliation.Passed),
	)

	return result, nil
}

// validateStructure rejects input the engine cannot even start on.
func (e *Engine) validateStructure(input Input) error {
	if input.TotalDistributable.IsNegative() {
		return &InputValidationError{Reason: "total distributable cash is negative"}
	}
	if len(input.Tiers) == 0 {
		return &InputValidationError{Reason: "no tiers defined"}
	}
	if len(input.Commitments) == 0 {
		return &InputValidationError{Reason: "no commitments provided"}
	}
	prev := 0
	for i := range input.Tiers {
		level := input.Tiers[i].Level
		if level <= prev {
			return &InputValidationError{
				TierLevel: level,
				Reason:    "tier levels must be strictly ascending",
			}
		}
		prev = level
	}
	switch input.Basis {
	case model.BasisCommitment, model.BasisContributedCapital, model.BasisProRata, model.BasisCustom:
	default:
		return &InputValidationError{Reason: "unknown allocation basis " + string(input.Basis)}
	}
	total := decimal.Zero
	for i := range input.Commitments {
		c := &input.Commitments[i]
		if c.Basis(input.Basis).IsNegative() {
			return &InputValidationError{Reason: "commitment " + c.CommitmentID + " has negative basis"}
		}
		total = total.Add(c.Basis(input.Basis))
	}
	if total.IsZero() {
		return &InputValidationError{Reason: "allocation basis sums to zero across commitments"}
	}
	return nil
}

// validateTiers runs the Input Validation audit step for every tier. When
// any tier fails, it returns a Result holding only those step-1 rows plus the
// summary, and the typed error.
func (e *Engine) validateTiers(input Input) (*Result, error) {
	var steps []model.TierAuditStep
	var firstBad *model.Tier

	for i := range input.Tiers {
		tier := &input.Tiers[i]
		step := e.inputValidationStep(input.CalculationID, tier)
		steps = append(steps, step)
		if !step.IsValidationPassed && firstBad == nil {
			firstBad = tier
		}
	}

	if firstBad == nil {
		return nil, nil
	}

	result := &Result{AuditSteps: steps}
	result.Summary = Summarize(steps)
	result.Reconciliation = Reconciliation{
		Passed:   false,
		Residual: input.TotalDistributable,
		Checks: []ReconCheck{{
			Name:   "input_valid",
			Passed: false,
			Detail: "tier definitions rejected before allocation",
		}},
	}

	e.log.Warn("waterfall input rejected",
		zap.String("calculation_id", input.CalculationID),
		zap.Int("tier_level", firstBad.Level),
		zap.Int("failed_steps", result.Summary.FailedSteps),
	)

	return result, &InputValidationError{
		TierLevel: firstBad.Level,
		Reason:    "tier definition failed input validation",
	}
}

// withinTolerance reports |a - b| <= policy tolerance.
func (e *Engine) withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(e.policy.RoundingTolerance)
}
