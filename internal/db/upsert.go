package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a multi-row upsert statement.
type UpsertConfig struct {
	Table        string   // target table (e.g., "waterfall_tiers")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
}

// BuildUpsert renders a single INSERT ... VALUES ... ON CONFLICT DO UPDATE
// statement covering nRows rows, with numbered placeholders laid out row-major.
// The caller flattens its row values into one args slice in the same order.
func BuildUpsert(cfg UpsertConfig, nRows int) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}
	if nRows <= 0 {
		return "", eris.New("db: upsert: no rows")
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflictSet := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflictSet[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflictSet[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	valueRows := make([]string, nRows)
	arg := 1
	for i := 0; i < nRows; i++ {
		ph := make([]string, len(cfg.Columns))
		for j := range cfg.Columns {
			ph[j] = fmt.Sprintf("$%d", arg)
			arg++
		}
		valueRows[i] = "(" + strings.Join(ph, ", ") + ")"
	}

	var setClauses []string
	for _, col := range updateCols {
		q := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{cfg.Table}.Sanitize(),
		quoteAndJoin(cfg.Columns),
		strings.Join(valueRows, ", "),
		quoteAndJoin(cfg.ConflictKeys),
		strings.Join(setClauses, ", "),
	)

	return sql, nil
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
