package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpsert(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "waterfall_tiers",
		Columns:      []string{"id", "calculation_id", "distributed_amount"},
		ConflictKeys: []string{"id"},
	}

	sql, err := BuildUpsert(cfg, 2)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "waterfall_tiers" ("id", "calculation_id", "distributed_amount") `+
			`VALUES ($1, $2, $3), ($4, $5, $6) `+
			`ON CONFLICT ("id") DO UPDATE SET `+
			`"calculation_id" = EXCLUDED."calculation_id", "distributed_amount" = EXCLUDED."distributed_amount"`,
		sql,
	)
}

func TestBuildUpsert_ExplicitUpdateCols(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "waterfall_tiers",
		Columns:      []string{"id", "name", "distributed_amount"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"distributed_amount"},
	}

	sql, err := BuildUpsert(cfg, 1)
	require.NoError(t, err)
	assert.Contains(t, sql, `DO UPDATE SET "distributed_amount" = EXCLUDED."distributed_amount"`)
	assert.NotContains(t, sql, `"name" = EXCLUDED`)
}

func TestBuildUpsert_Errors(t *testing.T) {
	_, err := BuildUpsert(UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, 1)
	assert.Error(t, err, "no columns")

	_, err = BuildUpsert(UpsertConfig{Table: "t", Columns: []string{"id"}}, 1)
	assert.Error(t, err, "no conflict keys")

	_, err = BuildUpsert(UpsertConfig{Table: "t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}, 0)
	assert.Error(t, err, "no rows")
}
