package export

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func fixtureStatement(t *testing.T) *Statement {
	t.Helper()
	posted := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	return &Statement{
		Calculation: &model.Calculation{
			ID:                 "calc-1",
			FundID:             "fund-1",
			Name:               "Q1 2026 Distribution",
			Status:             model.CalcStatusPosted,
			TotalDistributable: dec(t, "1500000"),
			PostedAt:           &posted,
		},
		Tiers: []model.Tier{
			{
				ID: "t1", CalculationID: "calc-1", Level: 1, Name: "Return of Capital",
				Terms:        model.ReturnOfCapitalTerms{TargetAmount: dec(t, "1000000")},
				LPAllocation: dec(t, "100"), GPAllocation: decimal.Zero,
				ActualAmount: dec(t, "1000000"), DistributedAmount: dec(t, "1000000"),
				LPAmount: dec(t, "1000000"), IsFullyAllocated: true,
			},
			{
				ID: "t2", CalculationID: "calc-1", Level: 2, Name: "Carried Interest",
				Terms:        model.CarriedInterestTerms{Rate: dec(t, "20")},
				LPAllocation: dec(t, "80"), GPAllocation: dec(t, "20"),
				ActualAmount: dec(t, "500000"), DistributedAmount: dec(t, "500000"),
				LPAmount: dec(t, "400000"), GPAmount: dec(t, "100000"), IsFullyAllocated: true,
			},
		},
		Events: []model.DistributionEvent{
			{
				ID: "ev-1", CalculationID: "calc-1", TierID: "t1",
				InvestorID: "inv-meridian", CommitmentID: "cmt-1",
				DistributionAmount:   dec(t, "600000"),
				AllocationPercentage: dec(t, "60"),
				CumulativeAmount:     dec(t, "600000"),
				NetDistribution:      dec(t, "600000"),
				TaxClassification:    model.TaxReturnOfCapital,
				PaymentStatus:        model.PaymentPending,
			},
			{
				ID: "ev-2", CalculationID: "calc-1", TierID: "t2",
				InvestorID: "inv-meridian", CommitmentID: "cmt-1",
				DistributionAmount:   dec(t, "240000"),
				AllocationPercentage: dec(t, "60"),
				CumulativeAmount:     dec(t, "840000"),
				WithholdingAmount:    dec(t, "24000"),
				NetDistribution:      dec(t, "216000"),
				TaxClassification:    model.TaxCarriedInterest,
				PaymentStatus:        model.PaymentPending,
			},
		},
		Summary: model.ValidationSummary{TotalSteps: 10, PassedSteps: 10, PassRate: 100},
	}
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	stmt := fixtureStatement(t)
	path := filepath.Join(t.TempDir(), "statement.xlsx")
	require.NoError(t, stmt.WriteXLSX(path))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 2)

	events := file.Sheets[0]
	assert.Equal(t, "Distribution Events", events.Name)
	require.Len(t, events.Rows, 3) // header + 2 events
	assert.Equal(t, "Event ID", events.Rows[0].Cells[0].Value)
	assert.Equal(t, "ev-1", events.Rows[1].Cells[0].Value)
	assert.Equal(t, "Return of Capital", events.Rows[1].Cells[1].Value)
	assert.Equal(t, "600000.00", events.Rows[1].Cells[4].Value)
	assert.Equal(t, "216000.00", events.Rows[2].Cells[7].Value)
	assert.Equal(t, string(model.PaymentPending), events.Rows[1].Cells[10].Value)

	tiers := file.Sheets[1]
	assert.Equal(t, "Tier Summary", tiers.Name)
	require.Len(t, tiers.Rows, 3)
	assert.Equal(t, "1", tiers.Rows[1].Cells[0].Value)
	assert.Equal(t, string(model.TierCarriedInterest), tiers.Rows[2].Cells[2].Value)
	assert.Equal(t, "100000.00", tiers.Rows[2].Cells[9].Value)
	assert.Equal(t, "yes", tiers.Rows[2].Cells[10].Value)
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	stmt := fixtureStatement(t)
	var buf strings.Builder
	require.NoError(t, stmt.RenderText(&buf))
	out := buf.String()

	assert.Contains(t, out, "Q1 2026 Distribution")
	assert.Contains(t, out, "Posted 2026-04-02")
	assert.Contains(t, out, "$1,500,000.00")
	assert.Contains(t, out, "Return of Capital")
	assert.Contains(t, out, "$100,000.00")
	assert.Contains(t, out, "inv-meridian")
	// 600000 + 216000 net across both events.
	assert.Contains(t, out, "$816,000.00")
	assert.Contains(t, out, "Audit: 10/10 steps passed")
}

func TestRenderTextListsIssues(t *testing.T) {
	t.Parallel()

	stmt := fixtureStatement(t)
	stmt.Summary = model.ValidationSummary{
		TotalSteps:  10,
		PassedSteps: 9,
		FailedSteps: 1,
		PassRate:    90,
		Issues: []model.ValidationIssue{{
			TierID:   "t2",
			TierName: "Carried Interest",
			StepName: "Final Reconciliation",
			Issue:    "residual exceeds tolerance",
		}},
	}

	var buf strings.Builder
	require.NoError(t, stmt.RenderText(&buf))
	assert.Contains(t, buf.String(), "Carried Interest / Final Reconciliation: residual exceeds tolerance")
}

func TestFormatMoneyUnknownCurrency(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "12.34", formatMoney(decimal.NewFromFloat(12.34), "ZZZ"))
}
