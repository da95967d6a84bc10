// Package scenario loads waterfall calculation inputs from YAML files and
// generates randomized scenarios for stress runs. Amounts are carried as
// strings in the files and parsed into exact decimals; accrued preferred
// return and catch-up amounts appear as given facts supplied by the
// fee/accrual collaborator.
package scenario

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// Scenario is a fully parsed calculation input plus policy overrides.
type Scenario struct {
	Name               string
	FundID             string
	GPID               string
	TotalDistributable decimal.Decimal
	Basis              model.AllocationBasis
	Tiers              []model.Tier
	Commitments        []model.Commitment
	Policy             engine.Policy
}

// Input assembles the engine input for this scenario under a calculation ID.
func (s *Scenario) Input(calcID string) engine.Input {
	tiers := make([]model.Tier, len(s.Tiers))
	copy(tiers, s.Tiers)
	for i := range tiers {
		tiers[i].CalculationID = calcID
	}
	return engine.Input{
		CalculationID:      calcID,
		FundID:             s.FundID,
		TotalDistributable: s.TotalDistributable,
		Tiers:              tiers,
		Commitments:        s.Commitments,
		Basis:              s.Basis,
		GPID:               s.GPID,
	}
}

// File schema. Amounts are strings so the YAML layer never touches floats.
type scenarioFile struct {
	Calculation struct {
		Name               string `yaml:"name"`
		FundID             string `yaml:"fund_id"`
		GPID               string `yaml:"gp_id"`
		TotalDistributable string `yaml:"total_distributable"`
		AllocationBasis    string `yaml:"allocation_basis"`
	} `yaml:"calculation"`
	Tiers       []tierSpec       `yaml:"tiers"`
	Commitments []commitmentSpec `yaml:"commitments"`
	Policy      struct {
		RoundingTolerance    string `yaml:"rounding_tolerance"`
		IncomeClassification string `yaml:"income_classification"`
	} `yaml:"policy"`
}

type tierSpec struct {
	Level           int    `yaml:"level"`
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	LPAllocation    string `yaml:"lp_allocation"`
	GPAllocation    string `yaml:"gp_allocation"`
	ThresholdAmount string `yaml:"threshold_amount"`
	TargetAmount    string `yaml:"target_amount"`
	AccruedAmount   string `yaml:"accrued_amount"`
	NeededAmount    string `yaml:"needed_amount"`
	Rate            string `yaml:"rate"`
}

type commitmentSpec struct {
	CommitmentID       string `yaml:"commitment_id"`
	InvestorID         string `yaml:"investor_id"`
	InvestorName       string `yaml:"investor_name"`
	CommitmentAmount   string `yaml:"commitment_amount"`
	ContributedCapital string `yaml:"contributed_capital"`
	WithholdingRate    string `yaml:"withholding_rate"`
	CustomBasis        string `yaml:"custom_basis"`
}

// Load reads and parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scenario: read %s", path)
	}
	return Parse(data)
}

// Parse parses scenario YAML bytes.
func Parse(data []byte) (*Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "scenario: parse yaml")
	}

	total, err := parseAmount(file.Calculation.TotalDistributable, "calculation.total_distributable")
	if err != nil {
		return nil, err
	}

	basis := model.AllocationBasis(file.Calculation.AllocationBasis)
	if basis == "" {
		basis = model.BasisProRata
	}

	s := &Scenario{
		Name:               file.Calculation.Name,
		FundID:             file.Calculation.FundID,
		GPID:               file.Calculation.GPID,
		TotalDistributable: total,
		Basis:              basis,
		Policy:             engine.DefaultPolicy(),
	}

	if file.Policy.RoundingTolerance != "" {
		tol, err := parseAmount(file.Policy.RoundingTolerance, "policy.rounding_tolerance")
		if err != nil {
			return nil, err
		}
		s.Policy.RoundingTolerance = tol
	}
	if file.Policy.IncomeClassification != "" {
		s.Policy.IncomeClassification = model.TaxClassification(file.Policy.IncomeClassification)
	}

	for i, spec := range file.Tiers {
		tier, err := parseTier(spec)
		if err != nil {
			return nil, eris.Wrapf(err, "scenario: tier %d", i+1)
		}
		s.Tiers = append(s.Tiers, tier)
	}

	for i, spec := range file.Commitments {
		c, err := parseCommitment(spec)
		if err != nil {
			return nil, eris.Wrapf(err, "scenario: commitment %d", i+1)
		}
		s.Commitments = append(s.Commitments, c)
	}

	return s, nil
}

func parseTier(spec tierSpec) (model.Tier, error) {
	tier := model.Tier{
		Level: spec.Level,
		Name:  spec.Name,
	}

	var err error
	if tier.LPAllocation, err = parseAmount(spec.LPAllocation, "lp_allocation"); err != nil {
		return tier, err
	}
	if tier.GPAllocation, err = parseAmount(spec.GPAllocation, "gp_allocation"); err != nil {
		return tier, err
	}
	if spec.ThresholdAmount != "" {
		if tier.ThresholdAmount, err = parseAmount(spec.ThresholdAmount, "threshold_amount"); err != nil {
			return tier, err
		}
	}

	switch model.TierType(spec.Type) {
	case model.TierReturnOfCapital:
		target, err := optionalAmount(spec.TargetAmount, "target_amount")
		if err != nil {
			return tier, err
		}
		tier.Terms = model.ReturnOfCapitalTerms{TargetAmount: target}
	case model.TierDistribution:
		target, err := optionalAmount(spec.TargetAmount, "target_amount")
		if err != nil {
			return tier, err
		}
		tier.Terms = model.DistributionTerms{TargetAmount: target}
	case model.TierPreferredReturn:
		accrued, err := parseAmount(spec.AccruedAmount, "accrued_amount")
		if err != nil {
			return tier, err
		}
		tier.Terms = model.PreferredReturnTerms{AccruedAmount: accrued}
	case model.TierCatchUp:
		needed, err := parseAmount(spec.NeededAmount, "needed_amount")
		if err != nil {
			return tier, err
		}
		tier.Terms = model.CatchUpTerms{NeededAmount: needed}
	case model.TierCarriedInterest:
		rate, err := parseAmount(spec.Rate, "rate")
		if err != nil {
			return tier, err
		}
		tier.Terms = model.CarriedInterestTerms{Rate: rate}
	case model.TierPromote:
		rate, err := parseAmount(spec.Rate, "rate")
		if err != nil {
			return tier, err
		}
		tier.Terms = model.PromoteTerms{Rate: rate}
	default:
		return tier, eris.Errorf("scenario: unknown tier type %q", spec.Type)
	}

	return tier, nil
}

func parseCommitment(spec commitmentSpec) (model.Commitment, error) {
	c := model.Commitment{
		CommitmentID: spec.CommitmentID,
		InvestorID:   spec.InvestorID,
		InvestorName: spec.InvestorName,
	}

	var err error
	if c.CommitmentAmount, err = parseAmount(spec.CommitmentAmount, "commitment_amount"); err != nil {
		return c, err
	}
	if c.ContributedCapital, err = optionalAmount(spec.ContributedCapital, "contributed_capital"); err != nil {
		return c, err
	}
	if c.WithholdingRate, err = optionalAmount(spec.WithholdingRate, "withholding_rate"); err != nil {
		return c, err
	}
	if c.CustomBasis, err = optionalAmount(spec.CustomBasis, "custom_basis"); err != nil {
		return c, err
	}
	return c, nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, eris.Errorf("scenario: %s is required", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "scenario: parse %s", field)
	}
	return d, nil
}

func optionalAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseAmount(raw, field)
}
