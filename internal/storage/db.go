// ABOUTME: SQLite database connection, lifecycle, and account-wide transactions.
// ABOUTME: Uses modernc.org/sqlite (pure Go, no CGO required).
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/metrics"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width in UTC so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the SQLite database connection.
type DB struct {
	db     *sql.DB
	dbPath string

	// accountMu serializes account-wide units (import, full delete) process-wide.
	accountMu sync.Mutex

	now func() time.Time

	// importHook runs between import steps; tests use it to inject failures.
	importHook func(step string) error
}

// Open opens or creates a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &DB{db: db, dbPath: dbPath, now: time.Now}

	// Pragmas are also in the DSN so every pooled connection gets them;
	// running them once here surfaces a bad file early.
	if err := d.configurePragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}

	// Set file permissions
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	if err := d.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return d, nil
}

// OpenDefault opens the database at the default XDG data path.
func OpenDefault() (*DB, error) {
	return Open(DefaultDBPath())
}

// DataDir returns the default data directory following XDG spec.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "cradle")
}

// DefaultDBPath returns the default database path following XDG spec.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "cradle.db")
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping checks that the database answers.
func (d *DB) Ping(ctx context.Context) error {
	return errs.Storage("ping database", d.db.PingContext(ctx))
}

var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// configurePragmas sets up SQLite for optimal performance.
func (d *DB) configurePragmas() error {
	for _, p := range pragmas {
		stmt := "PRAGMA " + pragmaStatement(p)
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %s: %w", stmt, err)
		}
	}
	return nil
}

// pragmaStatement turns "busy_timeout(5000)" into "busy_timeout = 5000".
func pragmaStatement(p string) string {
	for i := 0; i < len(p); i++ {
		if p[i] == '(' && p[len(p)-1] == ')' {
			return p[:i] + " = " + p[i+1:len(p)-1]
		}
	}
	return p
}

// withAccountTx runs fn as one atomic unit. Units are serialized process-wide,
// and the lock and transaction are released even when fn fails.
func (d *DB) withAccountTx(ctx context.Context, kind string, fn func(tx *sql.Tx) error) (err error) {
	d.accountMu.Lock()
	defer d.accountMu.Unlock()

	defer func() {
		result := "committed"
		if err != nil {
			result = "rolled_back"
		}
		metrics.AccountUnitsTotal.WithLabelValues(kind, result).Inc()
	}()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("begin "+kind, err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Storage("commit "+kind, err)
	}
	return nil
}

func (d *DB) checkpoint(step string) error {
	if d.importHook == nil {
		return nil
	}
	return d.importHook(step)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// nullJSON stores opaque JSON compacted so round trips are byte-stable.
func nullJSON(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
