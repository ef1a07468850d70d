// Package catalog is the coordinator's relational metadata store: every
// file, version, chunk, and node fact the rest of the system needs lives
// here, backed by a single SQLite database (§4.6). Chunk payloads
// themselves never pass through this package.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	stderr "errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
	"github.com/distfs/coordinator/pkg/retry"
)

// Catalog wraps a SQLite connection pool and the scoped-transaction helper
// every caller uses to talk to it.
type Catalog struct {
	db      *sql.DB
	retryer *retry.Retryer
}

// Open creates (if needed) and migrates the catalog database at path,
// seeding the default storage tiers and retention policy on first run.
// busyTimeout bounds how long a single SQLite statement waits on a lock
// held by another connection before returning SQLITE_BUSY.
func Open(path string, busyTimeout time.Duration) (*Catalog, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, coorderrors.NewIO("failed to open catalog database").
			WithComponent("catalog").WithOperation("Open").WithCause(err)
	}
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db, retryer: retry.New(retry.CatalogBusyConfig())}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) migrate() error {
	ctx := context.Background()
	for _, stmt := range schemaStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return coorderrors.NewIO("failed to apply catalog schema").
				WithComponent("catalog").WithOperation("migrate").WithCause(err)
		}
	}
	for _, stmt := range seedStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return coorderrors.NewIO("failed to seed catalog defaults").
				WithComponent("catalog").WithOperation("migrate").WithCause(err)
		}
	}
	return nil
}

// WithTx runs fn inside a transaction: commit on success, rollback on any
// returned error or panic. Acquiring the transaction itself is retried per
// pkg/retry.CatalogBusyConfig() when SQLite reports the database is busy
// or locked, matching MAX_RETRIES = 3 at a 1 s fixed delay (§4.6/§9).
func (c *Catalog) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	var tx *sql.Tx
	err := c.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var beginErr error
		tx, beginErr = c.db.BeginTx(ctx, nil)
		return classifyBusy(beginErr)
	})
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return coorderrors.NewIO("failed to commit catalog transaction").
			WithComponent("catalog").WithOperation("WithTx").WithCause(err)
	}
	committed = true
	return nil
}

// classifyBusy wraps a raw SQLite error as a retryable CATALOG_BUSY
// CoordinatorError when it looks like a lock contention failure, and as a
// plain IO error otherwise, so the retryer only retries the right class of
// failure.
func classifyBusy(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "busy") || strings.Contains(msg, "locked") {
		return coorderrors.NewBusy("catalog is busy").
			WithComponent("catalog").WithOperation("BeginTx").WithCause(err)
	}
	return coorderrors.NewIO("failed to begin catalog transaction").
		WithComponent("catalog").WithOperation("BeginTx").WithCause(err)
}

// ErrNoRows is returned by single-row lookups that find nothing; callers
// translate it to a NotFound-category CoordinatorError with the right
// message for the entity being looked up.
var ErrNoRows = sql.ErrNoRows

func isNoRows(err error) bool {
	return stderr.Is(err, sql.ErrNoRows)
}

// nowString formats t as the UTC timestamp string stored throughout the
// catalog (SQLite has no native datetime type).
func nowString(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
