package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// encodeTerms serializes a tier's terms to its type discriminator plus a JSON
// payload for the terms column.
func encodeTerms(terms model.TierTerms) (string, []byte, error) {
	if terms == nil {
		return "", nil, eris.New("store: tier has no terms")
	}
	data, err := json.Marshal(terms)
	if err != nil {
		return "", nil, eris.Wrap(err, "store: marshal terms")
	}
	return string(terms.Type()), data, nil
}

// decodeTerms reverses encodeTerms using the stored tier type.
func decodeTerms(tierType string, data []byte) (model.TierTerms, error) {
	var (
		terms model.TierTerms
		err   error
	)
	switch model.TierType(tierType) {
	case model.TierReturnOfCapital:
		var t model.ReturnOfCapitalTerms
		err = json.Unmarshal(data, &t)
		terms = t
	case model.TierPreferredReturn:
		var t model.PreferredReturnTerms
		err = json.Unmarshal(data, &t)
		terms = t
	case model.TierCatchUp:
		var t model.CatchUpTerms
		err = json.Unmarshal(data, &t)
		terms = t
	case model.TierCarriedInterest:
		var t model.CarriedInterestTerms
		err = json.Unmarshal(data, &t)
		terms = t
	case model.TierPromote:
		var t model.PromoteTerms
		err = json.Unmarshal(data, &t)
		terms = t
	case model.TierDistribution:
		var t model.DistributionTerms
		err = json.Unmarshal(data, &t)
		terms = t
	default:
		return nil, eris.Errorf("store: unknown tier type %q", tierType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal %s terms", tierType)
	}
	return terms, nil
}
