package model

import "github.com/shopspring/decimal"

// AllocationBasis selects how a tier's distributed amount is apportioned
// across investor commitments.
type AllocationBasis string

const (
	BasisCommitment         AllocationBasis = "commitment"
	BasisContributedCapital AllocationBasis = "contributed_capital"
	BasisProRata            AllocationBasis = "pro_rata"
	BasisCustom             AllocationBasis = "custom"
)

// Commitment is an active investor commitment, supplied by the
// fund/commitment service.
type Commitment struct {
	CommitmentID        string          `json:"commitment_id"`
	InvestorID          string          `json:"investor_id"`
	InvestorName        string          `json:"investor_name"`
	CommitmentAmount    decimal.Decimal `json:"commitment_amount"`
	ContributedCapital  decimal.Decimal `json:"contributed_capital"`
	OwnershipPercentage decimal.Decimal `json:"ownership_percentage"`
	WithholdingRate     decimal.Decimal `json:"withholding_rate"` // percentage
	CustomBasis         decimal.Decimal `json:"custom_basis"`
}

// Basis returns the apportionment weight for this commitment under the
// given basis.
func (c *Commitment) Basis(basis AllocationBasis) decimal.Decimal {
	switch basis {
	case BasisCommitment:
		return c.CommitmentAmount
	case BasisContributedCapital:
		return c.ContributedCapital
	case BasisProRata:
		return c.CommitmentAmount
	case BasisCustom:
		return c.CustomBasis
	default:
		return decimal.Zero
	}
}
