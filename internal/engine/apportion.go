package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// apportionTier splits a tier's distributed amount into one DistributionEvent
// per participating investor commitment, plus a GP event when the tier
// carries a GP share. Event amounts always sum exactly to the tier's
// distributed amount: LP shares are allocated largest-remainder so rounding
// never creates or destroys cash.
func (e *Engine) apportionTier(input Input, tier *model.Tier, cumulative map[string]decimal.Decimal) []model.DistributionEvent {
	if tier.DistributedAmount.IsZero() {
		return nil
	}

	gpAmount := tier.GPAmount.Round(e.policy.MoneyScale)
	lpTarget := tier.DistributedAmount.Sub(gpAmount)

	var events []model.DistributionEvent

	if lpTarget.IsPositive() {
		shares := e.splitByBasis(lpTarget, input.Commitments, input.Basis)
		for i, c := range input.Commitments {
			amount := shares[i]
			if amount.IsZero() {
				continue
			}
			events = append(events, e.newEvent(input, tier, eventSpec{
				investorID:   c.InvestorID,
				commitmentID: c.CommitmentID,
				amount:       amount,
				withholding:  withholdingFor(amount, c.WithholdingRate, e.policy.MoneyScale),
				tax:          e.classify(tier.Terms.Type(), false),
			}, cumulative))
		}
	}

	if gpAmount.IsPositive() {
		events = append(events, e.newEvent(input, tier, eventSpec{
			investorID:   gpID(input),
			commitmentID: gpID(input),
			amount:       gpAmount,
			withholding:  decimal.Zero,
			tax:          e.classify(tier.Terms.Type(), true),
		}, cumulative))
	}

	return events
}

type eventSpec struct {
	investorID   string
	commitmentID string
	amount       decimal.Decimal
	withholding  decimal.Decimal
	tax          model.TaxClassification
}

func (e *Engine) newEvent(input Input, tier *model.Tier, spec eventSpec, cumulative map[string]decimal.Decimal) model.DistributionEvent {
	cumulative[spec.investorID] = cumulative[spec.investorID].Add(spec.amount)

	pct := decimal.Zero
	if tier.DistributedAmount.IsPositive() {
		pct = spec.amount.Mul(hundred).DivRound(tier.DistributedAmount, 6)
	}

	return model.DistributionEvent{
		ID:                   e.newID(),
		CalculationID:        input.CalculationID,
		TierID:               tier.ID,
		InvestorID:           spec.investorID,
		CommitmentID:         spec.commitmentID,
		DistributionAmount:   spec.amount,
		AllocationPercentage: pct,
		CumulativeAmount:     cumulative[spec.investorID],
		WithholdingAmount:    spec.withholding,
		NetDistribution:      spec.amount.Sub(spec.withholding),
		TaxClassification:    spec.tax,
		PaymentStatus:        model.PaymentPending,
		CreatedAt:            e.now,
	}
}

// splitByBasis apportions target across commitments proportionally to their
// basis weights, largest-remainder at the money scale so the pieces sum to
// target exactly.
func (e *Engine) splitByBasis(target decimal.Decimal, commitments []model.Commitment, basis model.AllocationBasis) []decimal.Decimal {
	totalBasis := decimal.Zero
	weights := make([]decimal.Decimal, len(commitments))
	for i := range commitments {
		weights[i] = commitments[i].Basis(basis)
		totalBasis = totalBasis.Add(weights[i])
	}

	shares := make([]decimal.Decimal, len(commitments))
	remainders := make([]decimal.Decimal, len(commitments))
	allocated := decimal.Zero
	for i, w := range weights {
		exact := target.Mul(w).Div(totalBasis)
		shares[i] = exact.RoundDown(e.policy.MoneyScale)
		remainders[i] = exact.Sub(shares[i])
		allocated = allocated.Add(shares[i])
	}

	// Hand out the rounding leftover one penny at a time, biggest
	// fractional remainder first; index order breaks ties.
	leftover := target.Sub(allocated)
	penny := decimal.New(1, -e.policy.MoneyScale)
	order := make([]int, len(commitments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for _, idx := range order {
		if leftover.LessThan(penny) {
			break
		}
		shares[idx] = shares[idx].Add(penny)
		leftover = leftover.Sub(penny)
	}
	// A sub-penny residue only exists when the target itself is not at the
	// money scale; park it on the largest remainder so the sum stays exact.
	if !leftover.IsZero() && len(order) > 0 {
		shares[order[0]] = shares[order[0]].Add(leftover)
	}

	return shares
}

// classify derives the tax classification of an event from its tier type and
// recipient side, per fund policy.
func (e *Engine) classify(tierType model.TierType, gp bool) model.TaxClassification {
	switch tierType {
	case model.TierReturnOfCapital, model.TierDistribution:
		return model.TaxReturnOfCapital
	case model.TierCarriedInterest, model.TierPromote:
		if gp {
			return model.TaxCarriedInterest
		}
		return e.policy.IncomeClassification
	default:
		return e.policy.IncomeClassification
	}
}

func withholdingFor(amount, rate decimal.Decimal, scale int32) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(rate).DivRound(hundred, scale)
}

func gpID(input Input) string {
	if input.GPID != "" {
		return input.GPID
	}
	return "gp"
}
