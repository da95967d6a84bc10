package scenario

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// MonteCarloConfig bounds the randomized scenario generator.
type MonteCarloConfig struct {
	Runs         int   `yaml:"runs" mapstructure:"runs"`
	Seed         int64 `yaml:"seed" mapstructure:"seed"`
	MinCashCents int64 `yaml:"min_cash_cents" mapstructure:"min_cash_cents"`
	MaxCashCents int64 `yaml:"max_cash_cents" mapstructure:"max_cash_cents"`
	MinInvestors int   `yaml:"min_investors" mapstructure:"min_investors"`
	MaxInvestors int   `yaml:"max_investors" mapstructure:"max_investors"`
}

// DefaultMonteCarloConfig returns sensible stress-run bounds.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Runs:         100,
		Seed:         1,
		MinCashCents: 10_000_00,       // 10k
		MaxCashCents: 50_000_000_00,   // 50M
		MinInvestors: 2,
		MaxInvestors: 25,
	}
}

// Generator produces randomized waterfall scenarios. The random source is an
// explicitly seeded instance threaded through every draw, so a fixed seed
// reproduces the exact scenario sequence; the global source is never touched.
type Generator struct {
	cfg MonteCarloConfig
	rng *rand.Rand
}

// NewGenerator creates a generator seeded from cfg.Seed.
func NewGenerator(cfg MonteCarloConfig) *Generator {
	if cfg.Runs <= 0 {
		cfg.Runs = DefaultMonteCarloConfig().Runs
	}
	if cfg.MaxCashCents <= cfg.MinCashCents {
		def := DefaultMonteCarloConfig()
		cfg.MinCashCents, cfg.MaxCashCents = def.MinCashCents, def.MaxCashCents
	}
	if cfg.MinInvestors < 1 {
		cfg.MinInvestors = 1
	}
	if cfg.MaxInvestors < cfg.MinInvestors {
		cfg.MaxInvestors = cfg.MinInvestors
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate produces cfg.Runs randomized scenarios following the standard
// four-tier structure: return of capital, preferred return at an 8% style
// accrual, GP catch-up, and a 20% carry residual.
func (g *Generator) Generate() []Scenario {
	scenarios := make([]Scenario, 0, g.cfg.Runs)
	for i := 0; i < g.cfg.Runs; i++ {
		scenarios = append(scenarios, g.one(i+1))
	}
	return scenarios
}

func (g *Generator) one(n int) Scenario {
	cashCents := g.cfg.MinCashCents + g.rng.Int63n(g.cfg.MaxCashCents-g.cfg.MinCashCents+1)
	cash := decimal.New(cashCents, -2)

	investors := g.cfg.MinInvestors + g.rng.Intn(g.cfg.MaxInvestors-g.cfg.MinInvestors+1)
	commitments := make([]model.Commitment, 0, investors)
	totalCommitted := decimal.Zero
	for i := 0; i < investors; i++ {
		// Commitments between 100k and 10M, whole dollars.
		amount := decimal.NewFromInt(100_000 + g.rng.Int63n(9_900_001))
		commitments = append(commitments, model.Commitment{
			CommitmentID:       fmt.Sprintf("mc-%d-com-%d", n, i+1),
			InvestorID:         fmt.Sprintf("mc-%d-inv-%d", n, i+1),
			InvestorName:       fmt.Sprintf("Simulated Investor %d", i+1),
			CommitmentAmount:   amount,
			ContributedCapital: amount,
		})
		totalCommitted = totalCommitted.Add(amount)
	}

	// Accruals derived from the committed base: roughly one year at 8%,
	// catch-up at a quarter of the accrual. These are stand-in collaborator
	// facts, not an accrual computation.
	accrued := totalCommitted.Mul(decimal.New(8, -2)).Round(2)
	catchUp := accrued.Mul(decimal.New(25, -2)).Round(2)

	tiers := []model.Tier{
		{
			ID: fmt.Sprintf("mc-%d-tier-1", n), Level: 1, Name: "Return of Capital",
			Terms:        model.ReturnOfCapitalTerms{TargetAmount: totalCommitted},
			LPAllocation: decimal.NewFromInt(100), GPAllocation: decimal.Zero,
		},
		{
			ID: fmt.Sprintf("mc-%d-tier-2", n), Level: 2, Name: "Preferred Return",
			Terms:        model.PreferredReturnTerms{AccruedAmount: accrued},
			LPAllocation: decimal.NewFromInt(100), GPAllocation: decimal.Zero,
		},
		{
			ID: fmt.Sprintf("mc-%d-tier-3", n), Level: 3, Name: "GP Catch-Up",
			Terms:        model.CatchUpTerms{NeededAmount: catchUp},
			LPAllocation: decimal.Zero, GPAllocation: decimal.NewFromInt(100),
		},
		{
			ID: fmt.Sprintf("mc-%d-tier-4", n), Level: 4, Name: "Carried Interest",
			Terms:        model.CarriedInterestTerms{Rate: decimal.NewFromInt(20)},
			LPAllocation: decimal.NewFromInt(80), GPAllocation: decimal.NewFromInt(20),
		},
	}

	return Scenario{
		Name:               fmt.Sprintf("monte-carlo-%d", n),
		FundID:             fmt.Sprintf("mc-fund-%d", n),
		TotalDistributable: cash,
		Basis:              model.BasisProRata,
		Tiers:              tiers,
		Commitments:        commitments,
	}
}
