// Package export renders committed calculations as distribution statements:
// an xlsx workbook for operations and a plain-text report for review.
package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// Statement bundles everything a distribution statement shows.
type Statement struct {
	Calculation *model.Calculation
	Tiers       []model.Tier
	Events      []model.DistributionEvent
	Summary     model.ValidationSummary

	// Currency is the ISO 4217 code used for rendering. Defaults to USD.
	Currency string
}

var eventHeader = []string{
	"Event ID", "Tier", "Investor", "Commitment", "Gross Amount",
	"Allocation %", "Withholding", "Net Amount", "Cumulative",
	"Tax Classification", "Payment Status",
}

var tierHeader = []string{
	"Level", "Tier", "Type", "LP %", "GP %", "Allocated",
	"Distributed", "Remaining", "LP Amount", "GP Amount", "Fully Allocated",
}

// WriteXLSX writes the statement workbook to path: one row per distribution
// event plus a tier summary sheet.
func (s *Statement) WriteXLSX(path string) error {
	file := xlsx.NewFile()

	events, err := file.AddSheet("Distribution Events")
	if err != nil {
		return eris.Wrap(err, "export: add events sheet")
	}
	addRow(events, eventHeader...)

	tierNames := make(map[string]string, len(s.Tiers))
	for _, t := range s.Tiers {
		tierNames[t.ID] = t.Name
	}

	for _, e := range s.Events {
		addRow(events,
			e.ID,
			tierNames[e.TierID],
			e.InvestorID,
			e.CommitmentID,
			e.DistributionAmount.StringFixed(2),
			e.AllocationPercentage.String(),
			e.WithholdingAmount.StringFixed(2),
			e.NetDistribution.StringFixed(2),
			e.CumulativeAmount.StringFixed(2),
			string(e.TaxClassification),
			string(e.PaymentStatus),
		)
	}

	tiers, err := file.AddSheet("Tier Summary")
	if err != nil {
		return eris.Wrap(err, "export: add tier sheet")
	}
	addRow(tiers, tierHeader...)

	for _, t := range s.Tiers {
		tierType := ""
		if t.Terms != nil {
			tierType = string(t.Terms.Type())
		}
		addRow(tiers,
			strconv.Itoa(t.Level),
			t.Name,
			tierType,
			t.LPAllocation.String(),
			t.GPAllocation.String(),
			t.ActualAmount.StringFixed(2),
			t.DistributedAmount.StringFixed(2),
			t.RemainingAmount.StringFixed(2),
			t.LPAmount.StringFixed(2),
			t.GPAmount.StringFixed(2),
			boolYN(t.IsFullyAllocated),
		)
	}

	return eris.Wrapf(file.Save(path), "export: save %s", path)
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		cell.Value = v
	}
}

func boolYN(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
