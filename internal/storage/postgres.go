package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenlab/lumenos/internal/models"
)

// Postgres backs the store with a connection pool. Unlike the embedded
// driver it stores timestamps and lists natively.
type Postgres struct {
	pool      *pgxpool.Pool
	maxChecks int
	maxDraws  int
}

// NewPostgres connects to the database, verifies the connection, and
// ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string, maxChecks, maxDraws int) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool, maxChecks: maxChecks, maxDraws: maxDraws}
	if err := p.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return p, nil
}

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL DEFAULT '',
			tags        TEXT[] NOT NULL DEFAULT '{}',
			intensity   INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMPTZ NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_kind_recorded ON entries(kind, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS aura_checks (
			id            TEXT PRIMARY KEY,
			action        TEXT NOT NULL,
			tes           DOUBLE PRECISION NOT NULL,
			vtr           DOUBLE PRECISION NOT NULL,
			pai           DOUBLE PRECISION NOT NULL,
			preset        TEXT NOT NULL,
			passed        BOOLEAN NOT NULL,
			failed_metric TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_aura_checks_created ON aura_checks(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS oracle_draws (
			id         TEXT PRIMARY KEY,
			question   TEXT NOT NULL,
			options    TEXT[] NOT NULL,
			chosen     TEXT NOT NULL,
			method     TEXT NOT NULL,
			amplitudes DOUBLE PRECISION[] NOT NULL,
			drawn_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oracle_draws_drawn ON oracle_draws(drawn_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) AddEntry(ctx context.Context, entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO entries
			(id, kind, title, body, tags, intensity, recorded_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, string(entry.Kind), entry.Title, entry.Body, nonNilTags(entry.Tags),
		entry.Intensity, entry.RecordedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (p *Postgres) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	var e models.Entry
	var kind string
	err := p.pool.QueryRow(ctx, `
		SELECT id, kind, title, body, tags, intensity, recorded_at, created_at
		FROM entries WHERE id = $1`, id,
	).Scan(&e.ID, &kind, &e.Title, &e.Body, &e.Tags, &e.Intensity, &e.RecordedAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: entry %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	e.Kind = models.EntryKind(kind)
	return &e, nil
}

func (p *Postgres) ListEntries(ctx context.Context, filter EntryFilter) ([]*models.Entry, error) {
	query := `SELECT id, kind, title, body, tags, intensity, recorded_at, created_at FROM entries`
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = "+arg(string(filter.Kind)))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "recorded_at >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "recorded_at < "+arg(filter.Until))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY recorded_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.Entry{}
	for rows.Next() {
		var e models.Entry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Title, &e.Body, &e.Tags,
			&e.Intensity, &e.RecordedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Kind = models.EntryKind(kind)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (p *Postgres) UpdateEntry(ctx context.Context, entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE entries SET
			kind=$1, title=$2, body=$3, tags=$4, intensity=$5, recorded_at=$6, created_at=$7
		WHERE id=$8`,
		string(entry.Kind), entry.Title, entry.Body, nonNilTags(entry.Tags),
		entry.Intensity, entry.RecordedAt, entry.CreatedAt, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s", ErrNotFound, entry.ID)
	}
	return nil
}

func (p *Postgres) DeleteEntry(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s", ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) EntryTimes(ctx context.Context, kind models.EntryKind) ([]time.Time, error) {
	query := `SELECT recorded_at FROM entries`
	var args []any
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY recorded_at ASC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan entry time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (p *Postgres) AddAuraCheck(ctx context.Context, check *models.AuraCheck) error {
	if err := check.Validate(); err != nil {
		return fmt.Errorf("invalid aura check: %w", err)
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO aura_checks
			(id, action, tes, vtr, pai, preset, passed, failed_metric, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		check.ID, check.Action, check.TES, check.VTR, check.PAI,
		check.Preset, check.Passed, check.FailedMetric, check.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert aura check: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM aura_checks WHERE id NOT IN (
			SELECT id FROM aura_checks ORDER BY created_at DESC LIMIT $1
		)`, p.maxChecks); err != nil {
		return fmt.Errorf("failed to enforce check history cap: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *Postgres) ListAuraChecks(ctx context.Context, limit int) ([]models.AuraCheck, error) {
	query := `SELECT id, action, tes, vtr, pai, preset, passed, failed_metric, created_at
		FROM aura_checks ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aura checks: %w", err)
	}
	defer rows.Close()

	checks := []models.AuraCheck{}
	for rows.Next() {
		var c models.AuraCheck
		if err := rows.Scan(&c.ID, &c.Action, &c.TES, &c.VTR, &c.PAI,
			&c.Preset, &c.Passed, &c.FailedMetric, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aura check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (p *Postgres) AddOracleDraw(ctx context.Context, draw *models.OracleDraw) error {
	if err := draw.Validate(); err != nil {
		return fmt.Errorf("invalid oracle draw: %w", err)
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO oracle_draws
			(id, question, options, chosen, method, amplitudes, drawn_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		draw.ID, draw.Question, draw.Options, draw.Chosen,
		string(draw.Method), draw.Amplitudes, draw.DrawnAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert oracle draw: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM oracle_draws WHERE id NOT IN (
			SELECT id FROM oracle_draws ORDER BY drawn_at DESC LIMIT $1
		)`, p.maxDraws); err != nil {
		return fmt.Errorf("failed to enforce draw history cap: %w", err)
	}

	return tx.Commit(ctx)
}

// nonNilTags keeps a missing tag list from landing as SQL NULL.
func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (p *Postgres) ListOracleDraws(ctx context.Context, limit int) ([]models.OracleDraw, error) {
	query := `SELECT id, question, options, chosen, method, amplitudes, drawn_at
		FROM oracle_draws ORDER BY drawn_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query oracle draws: %w", err)
	}
	defer rows.Close()

	draws := []models.OracleDraw{}
	for rows.Next() {
		var d models.OracleDraw
		var method string
		if err := rows.Scan(&d.ID, &d.Question, &d.Options, &d.Chosen,
			&method, &d.Amplitudes, &d.DrawnAt); err != nil {
			return nil, fmt.Errorf("failed to scan oracle draw: %w", err)
		}
		d.Method = models.CollapseMethod(method)
		draws = append(draws, d)
	}
	return draws, rows.Err()
}
