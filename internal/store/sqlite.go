package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Decimal amounts are
// stored as TEXT in canonical string form so round-trips are exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS waterfall_calculations (
	id                  TEXT PRIMARY KEY,
	fund_id             TEXT NOT NULL,
	name                TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'draft',
	total_distributable TEXT NOT NULL,
	reverses_id         TEXT REFERENCES waterfall_calculations(id),
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	posted_at           DATETIME
);

CREATE TABLE IF NOT EXISTS waterfall_tiers (
	id                 TEXT PRIMARY KEY,
	calculation_id     TEXT NOT NULL REFERENCES waterfall_calculations(id),
	level              INTEGER NOT NULL,
	name               TEXT NOT NULL,
	tier_type          TEXT NOT NULL,
	terms              TEXT NOT NULL,
	lp_allocation      TEXT NOT NULL,
	gp_allocation      TEXT NOT NULL,
	threshold_amount   TEXT NOT NULL,
	actual_amount      TEXT NOT NULL,
	distributed_amount TEXT NOT NULL,
	remaining_amount   TEXT NOT NULL,
	lp_amount          TEXT NOT NULL,
	gp_amount          TEXT NOT NULL,
	is_fully_allocated INTEGER NOT NULL DEFAULT 0,
	UNIQUE (calculation_id, level)
);

CREATE TABLE IF NOT EXISTS distribution_events (
	id                    TEXT PRIMARY KEY,
	calculation_id        TEXT NOT NULL REFERENCES waterfall_calculations(id),
	tier_id               TEXT NOT NULL REFERENCES waterfall_tiers(id),
	investor_id           TEXT NOT NULL,
	commitment_id         TEXT NOT NULL,
	distribution_amount   TEXT NOT NULL,
	allocation_percentage TEXT NOT NULL,
	cumulative_amount     TEXT NOT NULL,
	withholding_amount    TEXT NOT NULL,
	net_distribution      TEXT NOT NULL,
	tax_classification    TEXT NOT NULL,
	payment_status        TEXT NOT NULL DEFAULT 'pending',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tier_audit_steps (
	calculation_id       TEXT NOT NULL REFERENCES waterfall_calculations(id),
	tier_id              TEXT NOT NULL,
	tier_name            TEXT NOT NULL,
	step_number          INTEGER NOT NULL,
	step_name            TEXT NOT NULL,
	formula              TEXT NOT NULL,
	inputs               TEXT NOT NULL,
	outputs              TEXT NOT NULL,
	validation_results   TEXT NOT NULL,
	is_validation_passed INTEGER NOT NULL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (calculation_id, tier_id, step_number)
);

CREATE INDEX IF NOT EXISTS idx_calcs_status ON waterfall_calculations(status);
CREATE INDEX IF NOT EXISTS idx_calcs_fund ON waterfall_calculations(fund_id);
CREATE INDEX IF NOT EXISTS idx_tiers_calc ON waterfall_tiers(calculation_id);
CREATE INDEX IF NOT EXISTS idx_events_calc ON distribution_events(calculation_id);
CREATE INDEX IF NOT EXISTS idx_events_tier ON distribution_events(tier_id);
CREATE INDEX IF NOT EXISTS idx_events_investor ON distribution_events(investor_id);
CREATE INDEX IF NOT EXISTS idx_audit_calc ON tier_audit_steps(calculation_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCalculation(ctx context.Context, calc *model.Calculation) error {
	if calc.ID == "" {
		calc.ID = uuid.New().String()
	}
	if calc.Status == "" {
		calc.Status = model.CalcStatusDraft
	}
	now := time.Now().UTC()
	if calc.CreatedAt.IsZero() {
		calc.CreatedAt = now
	}
	calc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO waterfall_calculations
		 (id, fund_id, name, status, total_distributable, reverses_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		calc.ID, calc.FundID, calc.Name, string(calc.Status),
		calc.TotalDistributable.String(), nullStr(calc.ReversesID),
		calc.CreatedAt, calc.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert calculation")
}

func (s *SQLiteStore) GetCalculation(ctx context.Context, id string) (*model.Calculation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fund_id, name, status, total_distributable, reverses_id, created_at, updated_at, posted_at
		 FROM waterfall_calculations WHERE id = ?`,
		id,
	)
	return scanCalculation(row, id)
}

func (s *SQLiteStore) ListCalculations(ctx context.Context, filter CalculationFilter) ([]model.Calculation, error) {
	query := `SELECT id, fund_id, name, status, total_distributable, reverses_id, created_at, updated_at, posted_at
	          FROM waterfall_calculations WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.FundID != "" {
		query += ` AND fund_id = ?`
		args = append(args, filter.FundID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list calculations")
	}
	defer rows.Close()

	var calcs []model.Calculation
	for rows.Next() {
		c, err := scanCalculation(rows, "")
		if err != nil {
			return nil, err
		}
		calcs = append(calcs, *c)
	}
	return calcs, eris.Wrap(rows.Err(), "sqlite: list calculations iterate")
}

func (s *SQLiteStore) UpdateCalculationStatus(ctx context.Context, id string, next model.CalculationStatus) error {
	var current model.CalculationStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM waterfall_calculations WHERE id = ?`, id,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return eris.Wrapf(ErrNotFound, "sqlite: calculation %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: get calculation status %s", id)
	}
	if !current.CanTransition(next) {
		return eris.Errorf("sqlite: illegal calculation transition %s -> %s", current, next)
	}

	var postedAt any
	if next == model.CalcStatusPosted {
		postedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE waterfall_calculations
		 SET status = ?, updated_at = ?, posted_at = COALESCE(?, posted_at)
		 WHERE id = ? AND status = ?`,
		string(next), time.Now().UTC(), postedAt, id, string(current),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update calculation status %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: calculation %s changed concurrently", id)
	}
	return nil
}

func (s *SQLiteStore) CommitRun(ctx context.Context, calcID string, result *engine.Result, status model.CalculationStatus) error {
	if err := commitStatus(status); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin commit run")
	}
	defer tx.Rollback()

	for i := range result.Tiers {
		if err := sqliteUpsertTier(ctx, tx, &result.Tiers[i]); err != nil {
			return err
		}
	}
	for i := range result.Events {
		if err := sqliteInsertEvent(ctx, tx, &result.Events[i]); err != nil {
			return err
		}
	}
	for i := range result.AuditSteps {
		if err := sqliteInsertAuditStep(ctx, tx, &result.AuditSteps[i]); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE waterfall_calculations SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), time.Now().UTC(), calcID, string(model.CalcStatusCalculating),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: commit run status %s", calcID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: calculation %s is not in %s status", calcID, model.CalcStatusCalculating)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func sqliteUpsertTier(ctx context.Context, tx *sql.Tx, t *model.Tier) error {
	tierType, termsJSON, err := encodeTerms(t.Terms)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO waterfall_tiers
		 (id, calculation_id, level, name, tier_type, terms, lp_allocation, gp_allocation,
		  threshold_amount, actual_amount, distributed_amount, remaining_amount,
		  lp_amount, gp_amount, is_fully_allocated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   actual_amount = excluded.actual_amount,
		   distributed_amount = excluded.distributed_amount,
		   remaining_amount = excluded.remaining_amount,
		   lp_amount = excluded.lp_amount,
		   gp_amount = excluded.gp_amount,
		   is_fully_allocated = excluded.is_fully_allocated`,
		t.ID, t.CalculationID, t.Level, t.Name, tierType, string(termsJSON),
		t.LPAllocation.String(), t.GPAllocation.String(), t.ThresholdAmount.String(),
		t.ActualAmount.String(), t.DistributedAmount.String(), t.RemainingAmount.String(),
		t.LPAmount.String(), t.GPAmount.String(), t.IsFullyAllocated,
	)
	return eris.Wrapf(err, "sqlite: upsert tier %s", t.ID)
}

func sqliteInsertEvent(ctx context.Context, tx *sql.Tx, e *model.DistributionEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO distribution_events
		 (id, calculation_id, tier_id, investor_id, commitment_id, distribution_amount,
		  allocation_percentage, cumulative_amount, withholding_amount, net_distribution,
		  tax_classification, payment_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CalculationID, e.TierID, e.InvestorID, e.CommitmentID,
		e.DistributionAmount.String(), e.AllocationPercentage.String(),
		e.CumulativeAmount.String(), e.WithholdingAmount.String(), e.NetDistribution.String(),
		string(e.TaxClassification), string(e.PaymentStatus), e.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert event %s", e.ID)
}

func sqliteInsertAuditStep(ctx context.Context, tx *sql.Tx, step *model.TierAuditStep) error {
	inputs, err := json.Marshal(step.Inputs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit inputs")
	}
	outputs, err := json.Marshal(step.Outputs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit outputs")
	}
	checks, err := json.Marshal(step.ValidationResults)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit checks")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tier_audit_steps
		 (calculation_id, tier_id, tier_name, step_number, step_name, formula,
		  inputs, outputs, validation_results, is_validation_passed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.CalculationID, step.TierID, step.TierName, step.StepNumber, step.StepName,
		step.Formula, string(inputs), string(outputs), string(checks),
		step.IsValidationPassed, step.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert audit step %s/%d", step.TierID, step.StepNumber)
}

func (s *SQLiteStore) ListTiers(ctx context.Context, calcID string) ([]model.Tier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, calculation_id, level, name, tier_type, terms, lp_allocation, gp_allocation,
		        threshold_amount, actual_amount, distributed_amount, remaining_amount,
		        lp_amount, gp_amount, is_fully_allocated
		 FROM waterfall_tiers WHERE calculation_id = ? ORDER BY level ASC`,
		calcID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tiers")
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var (
			t           model.Tier
			tierType    string
			termsJSON   string
			lpAlloc     string
			gpAlloc     string
			threshold   string
			actual      string
			distributed string
			remaining   string
			lpAmt       string
			gpAmt       string
		)
		if err := rows.Scan(&t.ID, &t.CalculationID, &t.Level, &t.Name, &tierType, &termsJSON,
			&lpAlloc, &gpAlloc, &threshold, &actual, &distributed, &remaining,
			&lpAmt, &gpAmt, &t.IsFullyAllocated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tier")
		}
		if t.Terms, err = decodeTerms(tierType, []byte(termsJSON)); err != nil {
			return nil, err
		}
		if err := parseDecimals([]decField{
			{lpAlloc, &t.LPAllocation}, {gpAlloc, &t.GPAllocation}, {threshold, &t.ThresholdAmount},
			{actual, &t.ActualAmount}, {distributed, &t.DistributedAmount}, {remaining, &t.RemainingAmount},
			{lpAmt, &t.LPAmount}, {gpAmt, &t.GPAmount},
		}); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, eris.Wrap(rows.Err(), "sqlite: list tiers iterate")
}

func (s *SQLiteStore) ListEvents(ctx context.Context, calcID string) ([]model.DistributionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, calculation_id, tier_id, investor_id, commitment_id, distribution_amount,
		        allocation_percentage, cumulative_amount, withholding_amount, net_distribution,
		        tax_classification, payment_status, created_at
		 FROM distribution_events WHERE calculation_id = ? ORDER BY created_at ASC, id ASC`,
		calcID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.DistributionEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) ListAuditSteps(ctx context.Context, calcID string) ([]model.TierAuditStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT calculation_id, tier_id, tier_name, step_number, step_name, formula,
		        inputs, outputs, validation_results, is_validation_passed, created_at
		 FROM tier_audit_steps WHERE calculation_id = ? ORDER BY tier_id ASC, step_number ASC`,
		calcID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit steps")
	}
	defer rows.Close()

	var steps []model.TierAuditStep
	for rows.Next() {
		var (
			step    model.TierAuditStep
			inputs  string
			outputs string
			checks  string
		)
		if err := rows.Scan(&step.CalculationID, &step.TierID, &step.TierName, &step.StepNumber,
			&step.StepName, &step.Formula, &inputs, &outputs, &checks,
			&step.IsValidationPassed, &step.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit step")
		}
		if err := json.Unmarshal([]byte(inputs), &step.Inputs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit inputs")
		}
		if err := json.Unmarshal([]byte(outputs), &step.Outputs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit outputs")
		}
		if err := json.Unmarshal([]byte(checks), &step.ValidationResults); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit checks")
		}
		steps = append(steps, step)
	}
	return steps, eris.Wrap(rows.Err(), "sqlite: list audit steps iterate")
}

func (s *SQLiteStore) MarkEventStatus(ctx context.Context, eventID string, next model.PaymentStatus) error {
	var current model.PaymentStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT payment_status FROM distribution_events WHERE id = ?`, eventID,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return eris.Wrapf(ErrNotFound, "sqlite: event %s", eventID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: get event status %s", eventID)
	}
	if !current.CanTransition(next) {
		return eris.Errorf("sqlite: illegal payment transition %s -> %s for event %s", current, next, eventID)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE distribution_events SET payment_status = ? WHERE id = ? AND payment_status = ?`,
		string(next), eventID, string(current),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark event %s", eventID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: event %s changed concurrently", eventID)
	}
	return nil
}

func (s *SQLiteStore) ReissueEvent(ctx context.Context, eventID string) (*model.DistributionEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, calculation_id, tier_id, investor_id, commitment_id, distribution_amount,
		        allocation_percentage, cumulative_amount, withholding_amount, net_distribution,
		        tax_classification, payment_status, created_at
		 FROM distribution_events WHERE id = ?`,
		eventID,
	)
	original, err := scanEvent(row)
	if err != nil {
		return nil, err
	}

	clone, err := original.Reissue(uuid.New().String(), time.Now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: reissue")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin reissue")
	}
	defer tx.Rollback()

	if err := sqliteInsertEvent(ctx, tx, clone); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit reissue")
	}
	return clone, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanCalculation(row scannable, id string) (*model.Calculation, error) {
	var (
		c        model.Calculation
		total    string
		reverses sql.NullString
		postedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.FundID, &c.Name, &c.Status, &total, &reverses,
		&c.CreatedAt, &c.UpdatedAt, &postedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: calculation %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan calculation")
	}
	if c.TotalDistributable, err = decimal.NewFromString(total); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse total_distributable")
	}
	if reverses.Valid {
		c.ReversesID = reverses.String
	}
	if postedAt.Valid {
		t := postedAt.Time
		c.PostedAt = &t
	}
	return &c, nil
}

func scanEvent(row scannable) (*model.DistributionEvent, error) {
	var (
		e           model.DistributionEvent
		amount      string
		pct         string
		cumulative  string
		withholding string
		net         string
	)
	err := row.Scan(&e.ID, &e.CalculationID, &e.TierID, &e.InvestorID, &e.CommitmentID,
		&amount, &pct, &cumulative, &withholding, &net,
		&e.TaxClassification, &e.PaymentStatus, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "sqlite: event")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan event")
	}
	if err := parseDecimals([]decField{
		{amount, &e.DistributionAmount}, {pct, &e.AllocationPercentage},
		{cumulative, &e.CumulativeAmount}, {withholding, &e.WithholdingAmount}, {net, &e.NetDistribution},
	}); err != nil {
		return nil, err
	}
	return &e, nil
}

type decField struct {
	raw string
	dst *decimal.Decimal
}

func parseDecimals(fields []decField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return eris.Wrapf(err, "store: parse decimal %q", f.raw)
		}
		*f.dst = d
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
