package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lumenlab/lumenos/internal/models"
)

// SQLite wraps an embedded database for all persistence operations.
type SQLite struct {
	db        *sql.DB
	maxChecks int
	maxDraws  int
}

// NewSQLite opens or creates the database at dbPath.
// An empty dbPath defaults to $TMPDIR/lumenos/data.db.
func NewSQLite(dbPath string, maxChecks, maxDraws int) (*SQLite, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "lumenos", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &SQLite{db: db, maxChecks: maxChecks, maxDraws: maxDraws}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Ping reports whether the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '[]',
			intensity   INTEGER NOT NULL DEFAULT 0,
			recorded_at INTEGER NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_kind_recorded ON entries(kind, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS aura_checks (
			id            TEXT PRIMARY KEY,
			action        TEXT NOT NULL,
			tes           REAL NOT NULL,
			vtr           REAL NOT NULL,
			pai           REAL NOT NULL,
			preset        TEXT NOT NULL,
			passed        INTEGER NOT NULL,
			failed_metric TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_aura_checks_created ON aura_checks(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS oracle_draws (
			id         TEXT PRIMARY KEY,
			question   TEXT NOT NULL,
			options    TEXT NOT NULL,
			chosen     TEXT NOT NULL,
			method     TEXT NOT NULL,
			amplitudes TEXT NOT NULL,
			drawn_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oracle_draws_drawn ON oracle_draws(drawn_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) AddEntry(ctx context.Context, entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries
			(id, kind, title, body, tags, intensity, recorded_at, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		entry.ID, string(entry.Kind), entry.Title, entry.Body, string(tagsJSON),
		entry.Intensity, entry.RecordedAt.UnixNano(), entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (s *SQLite) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryCols+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entry %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

func (s *SQLite) ListEntries(ctx context.Context, filter EntryFilter) ([]*models.Entry, error) {
	query := `SELECT ` + entryCols + ` FROM entries`
	var conds []string
	var args []any
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "recorded_at < ?")
		args = append(args, filter.Until.UnixNano())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY recorded_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) UpdateEntry(ctx context.Context, entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries SET
			kind=?, title=?, body=?, tags=?, intensity=?, recorded_at=?, created_at=?
		WHERE id=?`,
		string(entry.Kind), entry.Title, entry.Body, string(tagsJSON),
		entry.Intensity, entry.RecordedAt.UnixNano(), entry.CreatedAt.UnixNano(),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: entry %s", ErrNotFound, entry.ID)
	}
	return nil
}

func (s *SQLite) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: entry %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLite) EntryTimes(ctx context.Context, kind models.EntryKind) ([]time.Time, error) {
	query := `SELECT recorded_at FROM entries`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY recorded_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var nano int64
		if err := rows.Scan(&nano); err != nil {
			return nil, fmt.Errorf("failed to scan entry time: %w", err)
		}
		times = append(times, time.Unix(0, nano))
	}
	return times, rows.Err()
}

func (s *SQLite) AddAuraCheck(ctx context.Context, check *models.AuraCheck) error {
	if err := check.Validate(); err != nil {
		return fmt.Errorf("invalid aura check: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO aura_checks
			(id, action, tes, vtr, pai, preset, passed, failed_metric, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		check.ID, check.Action, check.TES, check.VTR, check.PAI,
		check.Preset, boolToInt(check.Passed), check.FailedMetric,
		check.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert aura check: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM aura_checks WHERE id NOT IN (
			SELECT id FROM aura_checks ORDER BY created_at DESC LIMIT ?
		)`, s.maxChecks); err != nil {
		return fmt.Errorf("failed to enforce check history cap: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) ListAuraChecks(ctx context.Context, limit int) ([]models.AuraCheck, error) {
	query := `SELECT id, action, tes, vtr, pai, preset, passed, failed_metric, created_at
		FROM aura_checks ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aura checks: %w", err)
	}
	defer rows.Close()

	checks := []models.AuraCheck{}
	for rows.Next() {
		var c models.AuraCheck
		var passed int
		var createdAtNano int64
		err := rows.Scan(
			&c.ID, &c.Action, &c.TES, &c.VTR, &c.PAI,
			&c.Preset, &passed, &c.FailedMetric, &createdAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aura check: %w", err)
		}
		c.Passed = passed != 0
		c.CreatedAt = time.Unix(0, createdAtNano)
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (s *SQLite) AddOracleDraw(ctx context.Context, draw *models.OracleDraw) error {
	if err := draw.Validate(); err != nil {
		return fmt.Errorf("invalid oracle draw: %w", err)
	}
	optionsJSON, err := json.Marshal(draw.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	amplitudesJSON, err := json.Marshal(draw.Amplitudes)
	if err != nil {
		return fmt.Errorf("failed to marshal amplitudes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO oracle_draws
			(id, question, options, chosen, method, amplitudes, drawn_at)
		VALUES (?,?,?,?,?,?,?)`,
		draw.ID, draw.Question, string(optionsJSON), draw.Chosen,
		string(draw.Method), string(amplitudesJSON), draw.DrawnAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert oracle draw: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM oracle_draws WHERE id NOT IN (
			SELECT id FROM oracle_draws ORDER BY drawn_at DESC LIMIT ?
		)`, s.maxDraws); err != nil {
		return fmt.Errorf("failed to enforce draw history cap: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) ListOracleDraws(ctx context.Context, limit int) ([]models.OracleDraw, error) {
	query := `SELECT id, question, options, chosen, method, amplitudes, drawn_at
		FROM oracle_draws ORDER BY drawn_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query oracle draws: %w", err)
	}
	defer rows.Close()

	draws := []models.OracleDraw{}
	for rows.Next() {
		var d models.OracleDraw
		var optionsJSON, amplitudesJSON, method string
		var drawnAtNano int64
		err := rows.Scan(
			&d.ID, &d.Question, &optionsJSON, &d.Chosen,
			&method, &amplitudesJSON, &drawnAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oracle draw: %w", err)
		}
		if err := json.Unmarshal([]byte(optionsJSON), &d.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options: %w", err)
		}
		if err := json.Unmarshal([]byte(amplitudesJSON), &d.Amplitudes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal amplitudes: %w", err)
		}
		d.Method = models.CollapseMethod(method)
		d.DrawnAt = time.Unix(0, drawnAtNano)
		draws = append(draws, d)
	}
	return draws, rows.Err()
}

const entryCols = `id, kind, title, body, tags, intensity, recorded_at, created_at`

func scanEntry(scan func(...any) error) (*models.Entry, error) {
	var e models.Entry
	var kind, tagsJSON string
	var recordedAtNano, createdAtNano int64
	err := scan(
		&e.ID, &kind, &e.Title, &e.Body, &tagsJSON,
		&e.Intensity, &recordedAtNano, &createdAtNano,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	e.Kind = models.EntryKind(kind)
	e.RecordedAt = time.Unix(0, recordedAtNano)
	e.CreatedAt = time.Unix(0, createdAtNano)
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
