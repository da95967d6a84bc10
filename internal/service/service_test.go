package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/resilience"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/store"
)

var testNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "waterfall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	var mu sync.Mutex
	n := 0
	eng := engine.New(engine.DefaultPolicy()).WithNow(testNow)
	svc := New(st, eng).
		WithNowFunc(func() time.Time { return testNow }).
		WithIDFunc(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%04d", n)
		})
	return svc, st
}

func standardSpec() RunSpec {
	return RunSpec{
		Basis: model.BasisProRata,
		GPID:  "gp-sponsor",
		Tiers: []model.Tier{
			{
				Level: 1, Name: "Return of Capital",
				Terms:        model.ReturnOfCapitalTerms{TargetAmount: dec("1000000")},
				LPAllocation: dec("100"), GPAllocation: dec("0"),
			},
			{
				Level: 2, Name: "Carried Interest",
				Terms:        model.CarriedInterestTerms{Rate: dec("20")},
				LPAllocation: dec("80"), GPAllocation: dec("20"),
			},
		},
		Commitments: []model.Commitment{
			{CommitmentID: "com-1", InvestorID: "inv-1", InvestorName: "Meridian Pension Trust",
				CommitmentAmount: dec("600000"), ContributedCapital: dec("600000")},
			{CommitmentID: "com-2", InvestorID: "inv-2", InvestorName: "Harbor Endowment",
				CommitmentAmount: dec("400000"), ContributedCapital: dec("400000")},
		},
	}
}

func TestServiceRunValidates(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "Q1 2026", TotalDistributable: dec("1500000"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusDraft, calc.Status)

	result, err := svc.Run(ctx, calc.ID, standardSpec())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.TotalDistributed.Equal(dec("1500000")))
	assert.True(t, result.Summary.Valid())

	persisted, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusValidated, persisted.Status)

	events, err := st.ListEvents(ctx, calc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestServiceRunMarksValidationFailed(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "bad split", TotalDistributable: dec("1000000"),
	})
	require.NoError(t, err)

	spec := standardSpec()
	spec.Tiers[1].LPAllocation = dec("60")
	spec.Tiers[1].GPAllocation = dec("39.99")

	result, err := svc.Run(ctx, calc.ID, spec)
	require.Error(t, err)

	var inputErr *engine.InputValidationError
	require.ErrorAs(t, err, &inputErr)
	require.NotNil(t, result, "audit trail is persisted even on failure")

	persisted, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusValidationFailed, persisted.Status)

	steps, err := st.ListAuditSteps(ctx, calc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, steps, "failed input validation rows are kept")
}

func TestServiceRunStructuralRejection(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "no tiers", TotalDistributable: dec("1000000"),
	})
	require.NoError(t, err)

	spec := standardSpec()
	spec.Tiers = nil

	result, err := svc.Run(ctx, calc.ID, spec)
	require.Error(t, err)
	assert.Nil(t, result)

	persisted, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusValidationFailed, persisted.Status)
}

func TestServiceRunUsesCommitmentSource(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WithCommitments(StaticCommitments(standardSpec().Commitments))
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "sourced", TotalDistributable: dec("1500000"),
	})
	require.NoError(t, err)

	spec := standardSpec()
	spec.Commitments = nil

	result, err := svc.Run(ctx, calc.ID, spec)
	require.NoError(t, err)
	assert.True(t, result.Summary.Valid())
}

func TestServiceAccrualResolution(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WithAccruals(StaticAccruals{Preferred: dec("80000"), CatchUp: dec("20000")})
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "accrued", TotalDistributable: dec("1500000"),
	})
	require.NoError(t, err)

	spec := standardSpec()
	spec.Tiers = []model.Tier{
		spec.Tiers[0],
		{
			Level: 2, Name: "Preferred Return",
			Terms:        model.PreferredReturnTerms{},
			LPAllocation: dec("100"), GPAllocation: dec("0"),
		},
		{
			Level: 3, Name: "Carried Interest",
			Terms:        model.CarriedInterestTerms{Rate: dec("20")},
			LPAllocation: dec("80"), GPAllocation: dec("20"),
		},
	}

	result, err := svc.Run(ctx, calc.ID, spec)
	require.NoError(t, err)
	require.Len(t, result.Tiers, 3)
	assert.True(t, result.Tiers[1].DistributedAmount.Equal(dec("80000")),
		"preferred tier pays the sourced accrual, got %s", result.Tiers[1].DistributedAmount)
}

func TestServicePostRequiresValidated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "draft only", TotalDistributable: dec("1000"),
	})
	require.NoError(t, err)

	err = svc.Post(ctx, calc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot post")
}

func TestServicePostAndReverse(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "Q1 2026", TotalDistributable: dec("1500000"),
	})
	require.NoError(t, err)
	_, err = svc.Run(ctx, calc.ID, standardSpec())
	require.NoError(t, err)

	require.NoError(t, svc.Post(ctx, calc.ID))

	persisted, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusPosted, persisted.Status)
	assert.NotNil(t, persisted.PostedAt)

	// Posted is immutable: a second run must be rejected.
	_, err = svc.Run(ctx, calc.ID, standardSpec())
	require.Error(t, err)

	reversal, err := svc.Reverse(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, calc.ID, reversal.ReversesID)
	assert.True(t, reversal.TotalDistributable.Equal(dec("-1500000")))

	original, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusReversed, original.Status)

	// The two ledgers must offset exactly.
	origEvents, err := st.ListEvents(ctx, calc.ID)
	require.NoError(t, err)
	revEvents, err := st.ListEvents(ctx, reversal.ID)
	require.NoError(t, err)
	require.Len(t, revEvents, len(origEvents))

	sum := decimal.Zero
	for _, e := range origEvents {
		sum = sum.Add(e.DistributionAmount)
	}
	for _, e := range revEvents {
		sum = sum.Add(e.DistributionAmount)
		assert.Equal(t, model.PaymentPending, e.PaymentStatus)
	}
	assert.True(t, sum.IsZero(), "net of original and reversal is %s", sum)

	// Reversed is terminal.
	_, err = svc.Reverse(ctx, calc.ID)
	require.Error(t, err)
}

func TestServicePostDeclinedByGate(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WithGate(declineGate{})
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "gated", TotalDistributable: dec("1500000"),
	})
	require.NoError(t, err)
	_, err = svc.Run(ctx, calc.ID, standardSpec())
	require.NoError(t, err)

	err = svc.Post(ctx, calc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declined")
}

type declineGate struct{}

func (declineGate) Approve(context.Context, *model.Calculation, model.ValidationSummary) (bool, string, error) {
	return false, "quarterly close is frozen", nil
}

// flakyStore fails CommitRun with a transient error a fixed number of times.
type flakyStore struct {
	store.Store
	mu        sync.Mutex
	failures  int
	committed int
}

func (f *flakyStore) CommitRun(ctx context.Context, calcID string, result *engine.Result, status model.CalculationStatus) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return resilience.NewTransientError(eris.New("database is locked"))
	}
	f.committed++
	f.mu.Unlock()
	return f.Store.CommitRun(ctx, calcID, result, status)
}

func TestServiceRetriesTransientCommit(t *testing.T) {
	svc, st := newTestService(t)
	flaky := &flakyStore{Store: st, failures: 2}
	svc.store = flaky
	svc.WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	ctx := context.Background()

	calc, err := svc.CreateCalculation(ctx, CreateRequest{
		FundID: "fund-1", Name: "flaky", TotalDistributable: dec("1500000"),
	})
	require.NoError(t, err)

	_, err = svc.Run(ctx, calc.ID, standardSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, flaky.committed)

	persisted, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusValidated, persisted.Status)
}

func TestServiceRunBatch(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	jobs := make([]BatchJob, 5)
	for i := range jobs {
		jobs[i] = BatchJob{
			Name:               fmt.Sprintf("batch-%d", i),
			FundID:             "fund-1",
			TotalDistributable: dec("1500000"),
			Spec:               standardSpec(),
		}
	}
	// One bad job: tier split does not sum to 100.
	jobs[3].Spec.Tiers[1].GPAllocation = dec("19")

	outcomes, err := svc.RunBatch(ctx, jobs)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	for i, o := range outcomes {
		require.NotEmpty(t, o.CalculationID, "job %d", i)
		if i == 3 {
			assert.Error(t, o.Err)
			assert.Equal(t, model.CalcStatusValidationFailed, o.Status)
			continue
		}
		assert.NoError(t, o.Err, "job %d", i)
		assert.Equal(t, model.CalcStatusValidated, o.Status)

		events, listErr := st.ListEvents(ctx, o.CalculationID)
		require.NoError(t, listErr)
		assert.NotEmpty(t, events)
	}
}
