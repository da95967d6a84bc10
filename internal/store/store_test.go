package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

var fixtureNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// fixtureResult runs a small two-tier waterfall so store tests persist real
// engine output rather than hand-built rows.
func fixtureResult(t *testing.T, calcID string) *engine.Result {
	t.Helper()

	n := 0
	eng := engine.New(engine.DefaultPolicy()).
		WithNow(fixtureNow).
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("%s-ev-%04d", calcID, n)
		})

	input := engine.Input{
		CalculationID:      calcID,
		FundID:             "fund-1",
		TotalDistributable: dec(t, "1500000"),
		Basis:              model.BasisProRata,
		GPID:               "gp-sponsor",
		Tiers: []model.Tier{
			{
				ID:            calcID + "-t1",
				CalculationID: calcID,
				Level:         1,
				Name:          "Return of Capital",
				Terms:         model.ReturnOfCapitalTerms{TargetAmount: dec(t, "1000000")},
				LPAllocation:  dec(t, "100"),
				GPAllocation:  dec(t, "0"),
			},
			{
				ID:            calcID + "-t2",
				CalculationID: calcID,
				Level:         2,
				Name:          "Carried Interest",
				Terms:         model.CarriedInterestTerms{Rate: dec(t, "20")},
				LPAllocation:  dec(t, "80"),
				GPAllocation:  dec(t, "20"),
			},
		},
		Commitments: []model.Commitment{
			{
				CommitmentID:       "com-1",
				InvestorID:         "inv-1",
				InvestorName:       "Meridian Pension Trust",
				CommitmentAmount:   dec(t, "600000"),
				ContributedCapital: dec(t, "600000"),
			},
			{
				CommitmentID:       "com-2",
				InvestorID:         "inv-2",
				InvestorName:       "Harbor Endowment",
				CommitmentAmount:   dec(t, "400000"),
				ContributedCapital: dec(t, "400000"),
			},
		},
	}

	result, err := eng.Run(input)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func fixtureCalculation(calcID string) *model.Calculation {
	return &model.Calculation{
		ID:                 calcID,
		FundID:             "fund-1",
		Name:               "Q1 2026 Distribution",
		Status:             model.CalcStatusDraft,
		TotalDistributable: decimal.RequireFromString("1500000"),
	}
}
