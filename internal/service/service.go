// Package service drives the calculation lifecycle: it loads inputs, invokes
// the allocation engine, persists results atomically, and enforces the
// posting and reversal rules.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/resilience"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/store"
)

// Service orchestrates waterfall calculations against a Store.
type Service struct {
	store         store.Store
	engine        *engine.Engine
	gate          ApprovalGate
	commitments   CommitmentSource
	accruals      AccrualSource
	retry         resilience.RetryConfig
	maxConcurrent int
	newID         func() string
	now           func() time.Time
}

// New creates a Service. The approval gate defaults to AutoApprovalGate.
func New(st store.Store, eng *engine.Engine) *Service {
	return &Service{
		store:         st,
		engine:        eng,
		gate:          AutoApprovalGate{},
		retry:         resilience.DefaultRetryConfig(),
		maxConcurrent: 4,
		newID:         func() string { return uuid.New().String() },
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithGate replaces the approval gate.
func (s *Service) WithGate(gate ApprovalGate) *Service {
	s.gate = gate
	return s
}

// WithCommitments sets the commitment source used when a run supplies none.
func (s *Service) WithCommitments(src CommitmentSource) *Service {
	s.commitments = src
	return s
}

// WithAccruals sets the accrual source used to resolve tier terms that carry
// no explicit amounts.
func (s *Service) WithAccruals(src AccrualSource) *Service {
	s.accruals = src
	return s
}

// WithRetry overrides the persistence retry policy.
func (s *Service) WithRetry(cfg resilience.RetryConfig) *Service {
	s.retry = cfg
	return s
}

// WithConcurrency bounds RunBatch parallelism.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.maxConcurrent = n
	}
	return s
}

// WithIDFunc overrides ID generation, for deterministic tests.
func (s *Service) WithIDFunc(fn func() string) *Service {
	s.newID = fn
	return s
}

// WithNowFunc overrides the clock, for deterministic tests.
func (s *Service) WithNowFunc(fn func() time.Time) *Service {
	s.now = fn
	return s
}

// CreateRequest describes a new draft calculation.
type CreateRequest struct {
	FundID             string          `json:"fund_id"`
	Name               string          `json:"name"`
	TotalDistributable decimal.Decimal `json:"total_distributable"`
}

// CreateCalculation registers a draft calculation.
func (s *Service) CreateCalculation(ctx context.Context, req CreateRequest) (*model.Calculation, error) {
	if req.FundID == "" {
		return nil, eris.New("service: fund_id is required")
	}
	if req.TotalDistributable.IsNegative() {
		return nil, eris.Errorf("service: total distributable %s is negative", req.TotalDistributable)
	}

	calc := &model.Calculation{
		ID:                 s.newID(),
		FundID:             req.FundID,
		Name:               req.Name,
		Status:             model.CalcStatusDraft,
		TotalDistributable: req.TotalDistributable,
		CreatedAt:          s.now(),
	}
	if err := s.store.CreateCalculation(ctx, calc); err != nil {
		return nil, eris.Wrap(err, "service: create calculation")
	}
	return calc, nil
}

// RunSpec carries the waterfall structure for one run. Commitments may be
// empty when the service has a CommitmentSource.
type RunSpec struct {
	Tiers       []model.Tier
	Commitments []model.Commitment
	Basis       model.AllocationBasis
	GPID        string
}

// Run executes the waterfall for a draft calculation and commits the result.
// The calculation ends validated or validation_failed; the engine result is
// returned alongside any validation error so callers can inspect the audit
// trail either way.
func (s *Service) Run(ctx context.Context, calcID string, spec RunSpec) (*engine.Result, error) {
	log := zap.L().With(zap.String("calculation_id", calcID))

	calc, err := s.store.GetCalculation(ctx, calcID)
	if err != nil {
		return nil, eris.Wrap(err, "service: load calculation")
	}

	if err := s.resolveSpec(ctx, calc, &spec); err != nil {
		return nil, err
	}

	if err := s.store.UpdateCalculationStatus(ctx, calcID, model.CalcStatusCalculating); err != nil {
		return nil, eris.Wrap(err, "service: mark calculating")
	}

	result, runErr := s.engine.Run(engine.Input{
		CalculationID:      calcID,
		FundID:             calc.FundID,
		TotalDistributable: calc.TotalDistributable,
		Tiers:              spec.Tiers,
		Commitments:        spec.Commitments,
		Basis:              spec.Basis,
		GPID:               spec.GPID,
	})
	if result == nil {
		// Structural rejection: nothing to persist beyond the failed status.
		if statusErr := s.store.UpdateCalculationStatus(ctx, calcID, model.CalcStatusValidationFailed); statusErr != nil {
			log.Warn("service: failed to mark validation_failed", zap.Error(statusErr))
		}
		return nil, eris.Wrap(runErr, "service: run rejected")
	}

	status := model.CalcStatusValidated
	if runErr != nil || !result.Summary.Valid() || !result.Reconciliation.Passed {
		status = model.CalcStatusValidationFailed
	}

	commit := func(ctx context.Context) error {
		return s.store.CommitRun(ctx, calcID, result, status)
	}
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("service", "commit_run")
	if err := resilience.Do(ctx, retry, commit); err != nil {
		return result, eris.Wrap(err, "service: commit run")
	}

	log.Info("service: run committed",
		zap.String("status", string(status)),
		zap.String("total_distributed", result.TotalDistributed.String()),
		zap.Int("failed_steps", result.Summary.FailedSteps),
	)

	if runErr != nil {
		return result, runErr
	}
	if status == model.CalcStatusValidationFailed {
		if resErr := result.Reconciliation.ResidualError(s.engine.Policy().RoundingTolerance); resErr != nil {
			return result, resErr
		}
		if incErr := result.Reconciliation.InconsistencyError(); incErr != nil {
			return result, incErr
		}
		return result, eris.New("service: audit validation failed")
	}
	return result, nil
}

// resolveSpec fills commitments and accrual-driven terms from the configured
// sources when the run spec leaves them empty.
func (s *Service) resolveSpec(ctx context.Context, calc *model.Calculation, spec *RunSpec) error {
	if len(spec.Commitments) == 0 && s.commitments != nil {
		commitments, err := s.commitments.ActiveCommitments(ctx, calc.FundID)
		if err != nil {
			return eris.Wrap(err, "service: load commitments")
		}
		spec.Commitments = commitments
	}
	if s.accruals == nil {
		return nil
	}
	asOf := s.now()
	for i := range spec.Tiers {
		switch terms := spec.Tiers[i].Terms.(type) {
		case model.PreferredReturnTerms:
			if terms.AccruedAmount.IsZero() {
				accrued, err := s.accruals.AccruedPreferred(ctx, calc.FundID, asOf)
				if err != nil {
					return eris.Wrap(err, "service: load accrued preferred")
				}
				spec.Tiers[i].Terms = model.PreferredReturnTerms{AccruedAmount: accrued}
			}
		case model.CatchUpTerms:
			if terms.NeededAmount.IsZero() {
				needed, err := s.accruals.CatchUpNeeded(ctx, calc.FundID, asOf)
				if err != nil {
					return eris.Wrap(err, "service: load catch-up")
				}
				spec.Tiers[i].Terms = model.CatchUpTerms{NeededAmount: needed}
			}
		}
	}
	return nil
}

// Post finalizes a validated calculation. It replays the persisted audit
// trail, requires zero failed steps, and asks the approval gate before the
// terminal transition.
func (s *Service) Post(ctx context.Context, calcID string) error {
	calc, err := s.store.GetCalculation(ctx, calcID)
	if err != nil {
		return eris.Wrap(err, "service: load calculation")
	}
	if calc.Status != model.CalcStatusValidated {
		return eris.Errorf("service: cannot post calculation in status %s", calc.Status)
	}

	steps, err := s.store.ListAuditSteps(ctx, calcID)
	if err != nil {
		return eris.Wrap(err, "service: load audit trail")
	}
	summary := engine.Summarize(steps)
	if !summary.Valid() {
		return eris.Errorf("service: audit trail has %d failed steps", summary.FailedSteps)
	}

	approved, reason, err := s.gate.Approve(ctx, calc, summary)
	if err != nil {
		return eris.Wrap(err, "service: approval gate")
	}
	if !approved {
		return eris.Errorf("service: posting declined: %s", reason)
	}

	if err := s.store.UpdateCalculationStatus(ctx, calcID, model.CalcStatusPosted); err != nil {
		return eris.Wrap(err, "service: mark posted")
	}
	zap.L().Info("service: calculation posted",
		zap.String("calculation_id", calcID),
		zap.String("approval", reason),
	)
	return nil
}

// Reverse offsets a posted calculation with a new one carrying negated
// amounts, linked through ReversesID. The original becomes reversed.
func (s *Service) Reverse(ctx context.Context, calcID string) (*model.Calculation, error) {
	original, err := s.store.GetCalculation(ctx, calcID)
	if err != nil {
		return nil, eris.Wrap(err, "service: load calculation")
	}
	if original.Status != model.CalcStatusPosted {
		return nil, eris.Errorf("service: cannot reverse calculation in status %s", original.Status)
	}

	tiers, err := s.store.ListTiers(ctx, calcID)
	if err != nil {
		return nil, eris.Wrap(err, "service: load tiers")
	}
	events, err := s.store.ListEvents(ctx, calcID)
	if err != nil {
		return nil, eris.Wrap(err, "service: load events")
	}

	reversal := &model.Calculation{
		ID:                 s.newID(),
		FundID:             original.FundID,
		Name:               original.Name + " (reversal)",
		Status:             model.CalcStatusDraft,
		TotalDistributable: original.TotalDistributable.Neg(),
		ReversesID:         original.ID,
		CreatedAt:          s.now(),
	}
	if err := s.store.CreateCalculation(ctx, reversal); err != nil {
		return nil, eris.Wrap(err, "service: create reversal")
	}
	if err := s.store.UpdateCalculationStatus(ctx, reversal.ID, model.CalcStatusCalculating); err != nil {
		return nil, eris.Wrap(err, "service: mark reversal calculating")
	}

	offset := s.offsetResult(reversal.ID, tiers, events)
	if err := s.store.CommitRun(ctx, reversal.ID, offset, model.CalcStatusValidated); err != nil {
		return nil, eris.Wrap(err, "service: commit reversal")
	}

	if err := s.store.UpdateCalculationStatus(ctx, calcID, model.CalcStatusReversed); err != nil {
		return nil, eris.Wrap(err, "service: mark reversed")
	}

	reversal.Status = model.CalcStatusValidated
	zap.L().Info("service: calculation reversed",
		zap.String("calculation_id", calcID),
		zap.String("reversal_id", reversal.ID),
	)
	return reversal, nil
}

// offsetResult negates a committed run so the reversal's ledger sums to zero
// against the original. Events restart at pending with fresh IDs.
func (s *Service) offsetResult(reversalID string, tiers []model.Tier, events []model.DistributionEvent) *engine.Result {
	now := s.now()
	result := &engine.Result{
		TotalDistributed: decimal.Zero,
		LPTotal:          decimal.Zero,
		GPTotal:          decimal.Zero,
	}

	tierIDs := make(map[string]string, len(tiers)) // original tier -> reversal tier
	for _, t := range tiers {
		rt := t
		rt.ID = s.newID()
		rt.CalculationID = reversalID
		rt.ActualAmount = t.ActualAmount.Neg()
		rt.DistributedAmount = t.DistributedAmount.Neg()
		rt.RemainingAmount = t.RemainingAmount.Neg()
		rt.LPAmount = t.LPAmount.Neg()
		rt.GPAmount = t.GPAmount.Neg()
		tierIDs[t.ID] = rt.ID

		result.Tiers = append(result.Tiers, rt)
		result.TotalDistributed = result.TotalDistributed.Add(rt.DistributedAmount)
		result.LPTotal = result.LPTotal.Add(rt.LPAmount)
		result.GPTotal = result.GPTotal.Add(rt.GPAmount)
	}

	for _, e := range events {
		re := e
		re.ID = s.newID()
		re.CalculationID = reversalID
		re.TierID = tierIDs[e.TierID]
		re.DistributionAmount = e.DistributionAmount.Neg()
		re.CumulativeAmount = e.CumulativeAmount.Neg()
		re.WithholdingAmount = e.WithholdingAmount.Neg()
		re.NetDistribution = e.NetDistribution.Neg()
		re.PaymentStatus = model.PaymentPending
		re.CreatedAt = now
		result.Events = append(result.Events, re)
	}

	return result
}
