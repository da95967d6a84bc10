package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// formatMoney renders a decimal amount in the statement currency, scaling by
// the currency's minor-unit fraction so cents survive the conversion.
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	return money.New(amount.Mul(factor).Round(0).IntPart(), currency).Display()
}

// RenderText writes a human-readable distribution statement.
func (s *Statement) RenderText(w io.Writer) error {
	currency := s.Currency
	if currency == "" {
		currency = money.USD
	}
	c := s.Calculation

	var b strings.Builder
	fmt.Fprintf(&b, "Distribution Statement: %s\n", c.Name)
	fmt.Fprintf(&b, "Fund %s  calculation %s  status %s\n", c.FundID, c.ID, c.Status)
	if c.ReversesID != "" {
		fmt.Fprintf(&b, "Reverses calculation %s\n", c.ReversesID)
	}
	if c.PostedAt != nil {
		fmt.Fprintf(&b, "Posted %s\n", c.PostedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Total distributable: %s\n\n", formatMoney(c.TotalDistributable, currency))

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tTIER\tALLOCATED\tLP\tGP\tREMAINING")
	for _, t := range s.Tiers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.Level, t.Name,
			formatMoney(t.DistributedAmount, currency),
			formatMoney(t.LPAmount, currency),
			formatMoney(t.GPAmount, currency),
			formatMoney(t.RemainingAmount, currency),
		)
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "export: flush tier table")
	}

	investorTotals := make(map[string]decimal.Decimal)
	var order []string
	for _, e := range s.Events {
		if _, ok := investorTotals[e.InvestorID]; !ok {
			order = append(order, e.InvestorID)
		}
		investorTotals[e.InvestorID] = investorTotals[e.InvestorID].Add(e.NetDistribution)
	}

	b.WriteString("\n")
	iw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(iw, "INVESTOR\tNET DISTRIBUTION")
	for _, id := range order {
		fmt.Fprintf(iw, "%s\t%s\n", id, formatMoney(investorTotals[id], currency))
	}
	if err := iw.Flush(); err != nil {
		return eris.Wrap(err, "export: flush investor table")
	}

	fmt.Fprintf(&b, "\nAudit: %d/%d steps passed", s.Summary.PassedSteps, s.Summary.TotalSteps)
	if len(s.Summary.Issues) > 0 {
		b.WriteString("\n")
		for _, issue := range s.Summary.Issues {
			fmt.Fprintf(&b, "  issue: %s / %s: %s\n", issue.TierName, issue.StepName, issue.Issue)
		}
	} else {
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "export: write report")
}
