package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// CommitmentSource supplies the active investor commitments for a fund.
// Production wires the fund administration system; scenario files provide a
// static implementation.
type CommitmentSource interface {
	ActiveCommitments(ctx context.Context, fundID string) ([]model.Commitment, error)
}

// AccrualSource supplies accrued preferred return and catch-up amounts as of
// a date. Accrual math (day counts, compounding) lives behind this interface;
// the engine consumes the results as given facts.
type AccrualSource interface {
	AccruedPreferred(ctx context.Context, fundID string, asOf time.Time) (decimal.Decimal, error)
	CatchUpNeeded(ctx context.Context, fundID string, asOf time.Time) (decimal.Decimal, error)
}

// ApprovalGate decides whether a validated calculation may be posted.
type ApprovalGate interface {
	Approve(ctx context.Context, calc *model.Calculation, summary model.ValidationSummary) (bool, string, error)
}

// StaticCommitments is a CommitmentSource backed by a fixed slice, used by
// scenario files and tests.
type StaticCommitments []model.Commitment

func (s StaticCommitments) ActiveCommitments(_ context.Context, _ string) ([]model.Commitment, error) {
	out := make([]model.Commitment, len(s))
	copy(out, s)
	return out, nil
}

// StaticAccruals is an AccrualSource with fixed amounts, used by scenario
// files and tests.
type StaticAccruals struct {
	Preferred decimal.Decimal
	CatchUp   decimal.Decimal
}

func (s StaticAccruals) AccruedPreferred(_ context.Context, _ string, _ time.Time) (decimal.Decimal, error) {
	return s.Preferred, nil
}

func (s StaticAccruals) CatchUpNeeded(_ context.Context, _ string, _ time.Time) (decimal.Decimal, error) {
	return s.CatchUp, nil
}

// AutoApprovalGate approves any calculation with a clean audit trail. The
// serve and CLI surfaces use it when no human approval flow is wired.
type AutoApprovalGate struct{}

func (AutoApprovalGate) Approve(_ context.Context, _ *model.Calculation, summary model.ValidationSummary) (bool, string, error) {
	if !summary.Valid() {
		return false, "audit trail has failed steps", nil
	}
	return true, "auto-approved: all audit steps passed", nil
}
