package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

func TestTermsRoundTrip(t *testing.T) {
	t.Parallel()

	terms := []model.TierTerms{
		model.ReturnOfCapitalTerms{TargetAmount: dec(t, "1000000")},
		model.PreferredReturnTerms{AccruedAmount: dec(t, "80000.50")},
		model.CatchUpTerms{NeededAmount: dec(t, "20000")},
		model.CarriedInterestTerms{Rate: dec(t, "20")},
		model.PromoteTerms{Rate: dec(t, "12.5")},
		model.DistributionTerms{TargetAmount: dec(t, "0")},
	}

	for _, in := range terms {
		in := in
		t.Run(string(in.Type()), func(t *testing.T) {
			t.Parallel()

			tierType, data, err := encodeTerms(in)
			require.NoError(t, err)
			assert.Equal(t, string(in.Type()), tierType)

			out, err := decodeTerms(tierType, data)
			require.NoError(t, err)
			assert.Equal(t, in.Type(), out.Type())

			// Decimal fields must survive the trip exactly.
			reType, reData, err := encodeTerms(out)
			require.NoError(t, err)
			assert.Equal(t, tierType, reType)
			assert.JSONEq(t, string(data), string(reData))
		})
	}
}

func TestEncodeTermsNil(t *testing.T) {
	t.Parallel()

	_, _, err := encodeTerms(nil)
	assert.Error(t, err)
}

func TestDecodeTermsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := decodeTerms("mezzanine", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier type")
}
