package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/db"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool. Amounts live in NUMERIC
// columns and are read back through ::text casts so decimals round-trip
// without float conversion.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_calculation": `INSERT INTO waterfall_calculations (id, fund_id, name, status, total_distributable, reverses_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_calculation":    `SELECT id, fund_id, name, status, total_distributable::text, reverses_id, created_at, updated_at, posted_at FROM waterfall_calculations WHERE id = $1`,
	"get_calc_status":    `SELECT status FROM waterfall_calculations WHERE id = $1`,
	"get_event":          `SELECT id, calculation_id, tier_id, investor_id, commitment_id, distribution_amount::text, allocation_percentage::text, cumulative_amount::text, withholding_amount::text, net_distribution::text, tax_classification, payment_status, created_at FROM distribution_events WHERE id = $1`,
	"get_event_status":   `SELECT payment_status FROM distribution_events WHERE id = $1`,
	"mark_event":         `UPDATE distribution_events SET payment_status = $1 WHERE id = $2 AND payment_status = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests use this with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS waterfall_calculations (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	fund_id             TEXT NOT NULL,
	name                TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'draft',
	total_distributable NUMERIC(20,6) NOT NULL,
	reverses_id         TEXT REFERENCES waterfall_calculations(id),
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	posted_at           TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS waterfall_tiers (
	id                 TEXT PRIMARY KEY,
	calculation_id     TEXT NOT NULL REFERENCES waterfall_calculations(id),
	level              INTEGER NOT NULL,
	name               TEXT NOT NULL,
	tier_type          TEXT NOT NULL,
	terms              JSONB NOT NULL,
	lp_allocation      NUMERIC(9,6) NOT NULL,
	gp_allocation      NUMERIC(9,6) NOT NULL,
	threshold_amount   NUMERIC(20,6) NOT NULL,
	actual_amount      NUMERIC(20,6) NOT NULL,
	distributed_amount NUMERIC(20,6) NOT NULL,
	remaining_amount   NUMERIC(20,6) NOT NULL,
	lp_amount          NUMERIC(20,6) NOT NULL,
	gp_amount          NUMERIC(20,6) NOT NULL,
	is_fully_allocated BOOLEAN NOT NULL DEFAULT false,
	UNIQUE (calculation_id, level)
);

CREATE TABLE IF NOT EXISTS distribution_events (
	id                    TEXT PRIMARY KEY,
	calculation_id        TEXT NOT NULL REFERENCES waterfall_calculations(id),
	tier_id               TEXT NOT NULL REFERENCES waterfall_tiers(id),
	investor_id           TEXT NOT NULL,
	commitment_id         TEXT NOT NULL,
	distribution_amount   NUMERIC(20,6) NOT NULL,
	allocation_percentage NUMERIC(9,6) NOT NULL,
	cumulative_amount     NUMERIC(20,6) NOT NULL,
	withholding_amount    NUMERIC(20,6) NOT NULL,
	net_distribution      NUMERIC(20,6) NOT NULL,
	tax_classification    TEXT NOT NULL,
	payment_status        TEXT NOT NULL DEFAULT 'pending',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tier_audit_steps (
	calculation_id       TEXT NOT NULL REFERENCES waterfall_calculations(id),
	tier_id              TEXT NOT NULL,
	tier_name            TEXT NOT NULL,
	step_number          INTEGER NOT NULL,
	step_name            TEXT NOT NULL,
	formula              TEXT NOT NULL,
	inputs               JSONB NOT NULL,
	outputs              JSONB NOT NULL,
	validation_results   JSONB NOT NULL,
	is_validation_passed BOOLEAN NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateCalculation(ctx context.Context, calc *model.Calculation) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO waterfall_calculations
		 (id, fund_id, name, status, total_distributable, reverses_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		calc.ID, calc.FundID, calc.Name, string(calc.Status),
		calc.TotalDistributable.String(), nullStr(calc.ReversesID),
		calc.CreatedAt, calc.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert calculation")
}

func (s *PostgresStore) GetCalculation(ctx context.Context, id string) (*model.Calculation, error) {
	var (
		c        model.Calculation
		total    string
		reverses *string
		postedAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, fund_id, name, status, total_distributable::text, reverses_id, created_at, updated_at, posted_at
		 FROM waterfall_calculations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.FundID, &c.Name, &c.Status, &total, &reverses, &c.CreatedAt, &c.UpdatedAt, &postedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: calculation %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get calculation %s", id)
	}
	if c.TotalDistributable, err = decimal.NewFromString(total); err != nil {
		return nil, eris.Wrap(err, "postgres: parse total_distributable")
	}
	if reverses != nil {
		c.ReversesID = *reverses
	}
	c.PostedAt = postedAt
	return &c, nil
}

func (s *PostgresStore) ListCalculations(ctx context.Context, filter CalculationFilter) ([]model.Calculation, error) {
	query := `SELECT id, fund_id, name, status, total_distributable::text, reverses_id, created_at, updated_at, posted_at
	          FROM waterfall_calculations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.FundID != "" {
		query += fmt.Sprintf(` AND fund_id = $%d`, argIdx)
		args = append(args, filter.FundID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list calculations")
	}
	defer rows.Close()

	var calcs []model.Calculation
	for rows.Next() {
		var (
			c        model.Calculation
			total    string
			reverses *string
			postedAt *time.Time
		)
		if err := rows.Scan(&c.ID, &c.FundID, &c.Name, &c.Status, &total, &reverses,
			&c.CreatedAt, &c.UpdatedAt, &postedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan calculation")
		}
		if c.TotalDistributable, err = decimal.NewFromString(total); err != nil {
			return nil, eris.Wrap(err, "postgres: parse total_distributable")
		}
		if reverses != nil {
			c.ReversesID = *reverses
		}
		c.PostedAt = postedAt
		calcs = append(calcs, c)
	}
	return calcs, eris.Wrap(rows.Err(), "postgres: list calculations iterate")
}

func (s *PostgresStore) UpdateCalculationStatus(ctx context.Context, id string, next model.CalculationStatus) error {
	var current model.CalculationStatus
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM waterfall_calculations WHERE id = $1`, id,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "postgres: calculation %s", id)
		}
		return eris.Wrapf(err, "postgres: get calculation status %s", id)
	}
	if !current.CanTransition(next) {
		return eris.Errorf("postgres: illegal calculation transition %s -> %s", current, next)
	}

	var postedAt *time.Time
	if next == model.CalcStatusPosted {
		t := time.Now().UTC()
		postedAt = &t
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE waterfall_calculations
		 SET status = $1, updated_at = $2, posted_at = COALESCE($3, posted_at)
		 WHERE id = $4 AND status = $5`,
		string(next), time.Now().UTC(), postedAt, id, string(current),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update calculation status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: calculation %s changed concurrently", id)
	}
	return nil
}

var tierUpsert = db.UpsertConfig{
	Table: "waterfall_tiers",
	Columns: []string{
		"id", "calculation_id", "level", "name", "tier_type", "terms",
		"lp_allocation", "gp_allocation", "threshold_amount", "actual_amount",
		"distributed_amount", "remaining_amount", "lp_amount", "gp_amount",
		"is_fully_allocated",
	},
	ConflictKeys: []string{"id"},
	UpdateCols: []string{
		"actual_amount", "distributed_amount", "remaining_amount",
		"lp_amount", "gp_amount", "is_fully_allocated",
	},
}

var eventColumns = []string{
	"id", "calculation_id", "tier_id", "investor_id", "commitment_id",
	"distribution_amount", "allocation_percentage", "cumulative_amount",
	"withholding_amount", "net_distribution", "tax_classification",
	"payment_status", "created_at",
}

var auditColumns = []string{
	"calculation_id", "tier_id", "tier_name", "step_number", "step_name",
	"formula", "inputs", "outputs", "validation_results",
	"is_validation_passed", "created_at",
}

func (s *PostgresStore) CommitRun(ctx context.Context, calcID string, result *engine.Result, status model.CalculationStatus) error {
	if err := commitStatus(status); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin commit run")
	}
	defer tx.Rollback(ctx)

	if len(result.Tiers) > 0 {
		sql, err := db.BuildUpsert(tierUpsert, len(result.Tiers))
		if err != nil {
			return err
		}
		args := make([]any, 0, len(result.Tiers)*len(tierUpsert.Columns))
		for i := range result.Tiers {
			row, err := tierRow(&result.Tiers[i])
			if err != nil {
				return err
			}
			args = append(args, row...)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return eris.Wrapf(err, "postgres: upsert tiers for %s", calcID)
		}
	}

	eventRows := make([][]any, len(result.Events))
	for i := range result.Events {
		eventRows[i] = eventRow(&result.Events[i])
	}
	if _, err := db.CopyRows(ctx, tx, "distribution_events", eventColumns, eventRows); err != nil {
		return err
	}

	auditRows := make([][]any, len(result.AuditSteps))
	for i := range result.AuditSteps {
		row, err := auditRow(&result.AuditSteps[i])
		if err != nil {
			return err
		}
		auditRows[i] = row
	}
	if _, err := db.CopyRows(ctx, tx, "tier_audit_steps", auditColumns, auditRows); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE waterfall_calculations SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		string(status), time.Now().UTC(), calcID, string(model.CalcStatusCalculating),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: commit run status %s", calcID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: calculation %s is not in %s status", calcID, model.CalcStatusCalculating)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func tierRow(t *model.Tier) ([]any, error) {
	tierType, termsJSON, err := encodeTerms(t.Terms)
	if err != nil {
		return nil, err
	}
	return []any{
		t.ID, t.CalculationID, t.Level, t.Name, tierType, termsJSON,
		t.LPAllocation.String(), t.GPAllocation.String(), t.ThresholdAmount.String(),
		t.ActualAmount.String(), t.DistributedAmount.String(), t.RemainingAmount.String(),
		t.LPAmount.String(), t.GPAmount.String(), t.IsFullyAllocated,
	}, nil
}

func eventRow(e *model.DistributionEvent) []any {
	return []any{
		e.ID, e.CalculationID, e.TierID, e.InvestorID, e.CommitmentID,
		e.DistributionAmount.String(), e.AllocationPercentage.String(),
		e.CumulativeAmount.String(), e.WithholdingAmount.String(), e.NetDistribution.String(),
		string(e.TaxClassification), string(e.PaymentStatus), e.CreatedAt,
	}
}

func auditRow(step *model.TierAuditStep) ([]any, error) {
	inputs, err := json.Marshal(step.Inputs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal audit inputs")
	}
	outputs, err := json.Marshal(step.Outputs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal audit outputs")
	}
	checks, err := json.Marshal(step.ValidationResults)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal audit checks")
	}
	return []any{
		step.CalculationID, step.TierID, step.TierName, step.StepNumber, step.StepName,
		step.Formula, inputs, outputs, checks, step.IsValidationPassed, step.CreatedAt,
	}, nil
}

func (s *PostgresStore) ListTiers(ctx context.Context, calcID string) ([]model.Tier, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, calculation_id, level, name, tier_type, terms,
		        lp_allocation::text, gp_allocation::text, threshold_amount::text,
		        actual_amount::text, distributed_amount::text, remaining_amount::text,
		        lp_amount::text, gp_amount::text, is_fully_allocated
		 FROM waterfall_tiers WHERE calculation_id = $1 ORDER BY level ASC`,
		calcID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tiers")
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var (
			t           model.Tier
			tierType    string
			termsJSON   []byte
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
			return nil, eris.Wrap(err, "postgres: scan tier")
		}
		if t.Terms, err = decodeTerms(tierType, termsJSON); err != nil {
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
	return tiers, eris.Wrap(rows.Err(), "postgres: list tiers iterate")
}

func (s *PostgresStore) ListEvents(ctx context.Context, calcID string) ([]model.DistributionEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, calculation_id, tier_id, investor_id, commitment_id,
		        distribution_amount::text, allocation_percentage::text, cumulative_amount::text,
		        withholding_amount::text, net_distribution::text,
		        tax_classification, payment_status, created_at
		 FROM distribution_events WHERE calculation_id = $1 ORDER BY created_at ASC, id ASC`,
		calcID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
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
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) ListAuditSteps(ctx context.Context, calcID string) ([]model.TierAuditStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT calculation_id, tier_id, tier_name, step_number, step_name, formula,
		        inputs, outputs, validation_results, is_validation_passed, created_at
		 FROM tier_audit_steps WHERE calculation_id = $1 ORDER BY tier_id ASC, step_number ASC`,
		calcID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit steps")
	}
	defer rows.Close()

	var steps []model.TierAuditStep
	for rows.Next() {
		var (
			step    model.TierAuditStep
			inputs  []byte
			outputs []byte
			checks  []byte
		)
		if err := rows.Scan(&step.CalculationID, &step.TierID, &step.TierName, &step.StepNumber,
			&step.StepName, &step.Formula, &inputs, &outputs, &checks,
			&step.IsValidationPassed, &step.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit step")
		}
		if err := json.Unmarshal(inputs, &step.Inputs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit inputs")
		}
		if err := json.Unmarshal(outputs, &step.Outputs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit outputs")
		}
		if err := json.Unmarshal(checks, &step.ValidationResults); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit checks")
		}
		steps = append(steps, step)
	}
	return steps, eris.Wrap(rows.Err(), "postgres: list audit steps iterate")
}

func (s *PostgresStore) MarkEventStatus(ctx context.Context, eventID string, next model.PaymentStatus) error {
	var current model.PaymentStatus
	err := s.pool.QueryRow(ctx,
		`SELECT payment_status FROM distribution_events WHERE id = $1`, eventID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "postgres: event %s", eventID)
		}
		return eris.Wrapf(err, "postgres: get event status %s", eventID)
	}
	if !current.CanTransition(next) {
		return eris.Errorf("postgres: illegal payment transition %s -> %s for event %s", current, next, eventID)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE distribution_events SET payment_status = $1 WHERE id = $2 AND payment_status = $3`,
		string(next), eventID, string(current),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark event %s", eventID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: event %s changed concurrently", eventID)
	}
	return nil
}

func (s *PostgresStore) ReissueEvent(ctx context.Context, eventID string) (*model.DistributionEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, calculation_id, tier_id, investor_id, commitment_id,
		        distribution_amount::text, allocation_percentage::text, cumulative_amount::text,
		        withholding_amount::text, net_distribution::text,
		        tax_classification, payment_status, created_at
		 FROM distribution_events WHERE id = $1`,
		eventID,
	)
	original, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: event %s", eventID)
		}
		return nil, err
	}

	clone, err := original.Reissue(uuid.New().String(), time.Now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: reissue")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO distribution_events
		 (id, calculation_id, tier_id, investor_id, commitment_id, distribution_amount,
		  allocation_percentage, cumulative_amount, withholding_amount, net_distribution,
		  tax_classification, payment_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		clone.ID, clone.CalculationID, clone.TierID, clone.InvestorID, clone.CommitmentID,
		clone.DistributionAmount.String(), clone.AllocationPercentage.String(),
		clone.CumulativeAmount.String(), clone.WithholdingAmount.String(), clone.NetDistribution.String(),
		string(clone.TaxClassification), string(clone.PaymentStatus), clone.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert reissued event for %s", eventID)
	}
	return clone, nil
}
