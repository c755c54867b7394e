// Package storage provides persistence for entries, aura checks, and
// oracle draws behind a driver-neutral Store interface. Two drivers
// exist: an embedded SQLite database and PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumenlab/lumenos/internal/models"
)

// ErrNotFound marks lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// EntryFilter narrows ListEntries. Zero fields mean unbounded.
type EntryFilter struct {
	Kind  models.EntryKind
	Since time.Time
	Until time.Time
	Limit int
}

// Store is the persistence surface the rest of the process depends on.
type Store interface {
	AddEntry(ctx context.Context, entry *models.Entry) error
	GetEntry(ctx context.Context, id string) (*models.Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*models.Entry, error)
	UpdateEntry(ctx context.Context, entry *models.Entry) error
	DeleteEntry(ctx context.Context, id string) error

	// EntryTimes returns the recorded_at timestamps for streak
	// derivation, restricted to one kind when kind is non-empty.
	EntryTimes(ctx context.Context, kind models.EntryKind) ([]time.Time, error)

	AddAuraCheck(ctx context.Context, check *models.AuraCheck) error
	ListAuraChecks(ctx context.Context, limit int) ([]models.AuraCheck, error)

	AddOracleDraw(ctx context.Context, draw *models.OracleDraw) error
	ListOracleDraws(ctx context.Context, limit int) ([]models.OracleDraw, error)

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a driver.
type Options struct {
	Driver          string // sqlite or postgres
	Path            string // sqlite database file
	DSN             string // postgres connection string
	MaxCheckHistory int
	MaxDrawHistory  int
}

// Open constructs the configured driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "sqlite":
		return NewSQLite(opts.Path, opts.MaxCheckHistory, opts.MaxDrawHistory)
	case "postgres":
		return NewPostgres(ctx, opts.DSN, opts.MaxCheckHistory, opts.MaxDrawHistory)
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}
