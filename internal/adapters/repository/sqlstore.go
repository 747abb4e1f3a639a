package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/pkg/logger"
	"github.com/okian/ecotogether/pkg/metrics"
)

// Supported drivers, matching config.DriverSQLite and config.DriverPostgres.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultBusyTimeout = 5 * time.Second

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func init() { //nolint:gochecknoinits // sqlx does not know modernc's driver name
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLStore is a Ledger backed by SQLite or Postgres.
type SQLStore struct {
	db          *sqlx.DB
	driver      string
	log         logger.Logger
	now         func() time.Time
	busyTimeout time.Duration
}

var _ Ledger = (*SQLStore)(nil)

// Open connects to the ledger database. It does not create the schema; call
// Migrate for that.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		driver:      driver,
		log:         logger.Nop(),
		now:         time.Now,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sqlx.Open("sqlite", s.sqliteDSN(dsn))
		if err == nil {
			// One connection serializes writers and keeps :memory: databases shared.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sqlx.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrLedger, driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrLedger, driver, err)
	}
	s.db = db
	return s, nil
}

// sqliteDSN appends the pragmas the ledger relies on. BEGIN IMMEDIATE takes
// the write lock up front so concurrent awards queue instead of failing.
func (s *SQLStore) sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		dsn, sep, s.busyTimeout.Milliseconds())
}

// Migrate applies the embedded schema migrations. It is idempotent and safe
// to call on every start.
func (s *SQLStore) Migrate(ctx context.Context) error {
	dialect, dir := goose.DialectSQLite3, "migrations/sqlite"
	if s.driver == DriverPostgres {
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	}
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	provider, err := goose.NewProvider(dialect, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	for _, r := range results {
		s.log.Info(ctx, "migration applied",
			logger.String("driver", s.driver),
			logger.Int64("version", r.Source.Version),
			logger.Duration("took", r.Duration))
	}
	return nil
}

// Balance returns the user's points, or 0 for an unknown username.
func (s *SQLStore) Balance(ctx context.Context, username string) (int64, error) {
	start := time.Now()
	var points int64
	err := s.db.GetContext(ctx, &points, s.db.Rebind(`SELECT points FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	if err != nil {
		return 0, s.fail(ctx, "balance", err)
	}
	metrics.RecordLedgerLatency("balance", msSince(start))
	return points, nil
}

// Award upserts the balance and appends the audit row in one transaction.
func (s *SQLStore) Award(ctx context.Context, username string, points int64, reason string) (int64, error) {
	if points <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrNonPositiveAward, points)
	}
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, s.fail(ctx, "award", err)
	}
	defer safeRollback(ctx, s.log, tx)

	var balance int64
	err = tx.GetContext(ctx, &balance, tx.Rebind(`
		INSERT INTO users (username, points) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET points = users.points + excluded.points
		RETURNING points`), username, points)
	if err != nil {
		return 0, s.fail(ctx, "award", err)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO transactions (username, points, reason, created_at) VALUES (?, ?, ?, ?)`),
		username, points, reason, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, s.fail(ctx, "award", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, s.fail(ctx, "award", err)
	}

	metrics.RecordLedgerLatency("award", msSince(start))
	s.log.Info(ctx, "points awarded",
		logger.String("username", username),
		logger.Int64("points", points),
		logger.Int64("balance", balance),
		logger.String("reason", reason))
	return balance, nil
}

type transactionRow struct {
	ID        int64          `db:"id"`
	Username  string         `db:"username"`
	Points    int64          `db:"points"`
	Reason    sql.NullString `db:"reason"`
	CreatedAt string         `db:"created_at"`
}

// createdAtLayouts are tried in order. Rows written before the ledger moved
// to UTC RFC 3339 carry a local time with no offset, read back as UTC.
var createdAtLayouts = []string{ //nolint:gochecknoglobals // read-only layout table
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseCreatedAt(v string) (time.Time, error) {
	var firstErr error
	for _, layout := range createdAtLayouts {
		ts, err := time.ParseInLocation(layout, v, time.UTC)
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// History returns the user's transactions oldest first. A positive limit
// keeps only the most recent rows.
func (s *SQLStore) History(ctx context.Context, username string, limit int) ([]model.Transaction, error) {
	start := time.Now()
	var rows []transactionRow
	var err error
	if limit > 0 {
		err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`
			SELECT id, username, points, reason, created_at FROM (
				SELECT id, username, points, reason, created_at FROM transactions
				WHERE username = ? ORDER BY id DESC LIMIT ?
			) recent ORDER BY id ASC`), username, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`
			SELECT id, username, points, reason, created_at FROM transactions
			WHERE username = ? ORDER BY id ASC`), username)
	}
	if err != nil {
		return nil, s.fail(ctx, "history", err)
	}

	out := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		ts, err := parseCreatedAt(r.CreatedAt)
		if err != nil {
			return nil, s.fail(ctx, "history", fmt.Errorf("transaction %d: created_at %q: %w", r.ID, r.CreatedAt, err))
		}
		out = append(out, model.Transaction{
			ID:        r.ID,
			Username:  r.Username,
			Points:    r.Points,
			Reason:    r.Reason.String,
			CreatedAt: ts,
		})
	}
	metrics.RecordLedgerLatency("history", msSince(start))
	return out, nil
}

// Stats summarizes the ledger.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM transactions) AS transactions,
			(SELECT CAST(COALESCE(SUM(points), 0) AS BIGINT) FROM users) AS total_points`)
	if err != nil {
		return Stats{}, s.fail(ctx, "stats", err)
	}
	return st, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.fail(ctx, "ping", err)
	}
	return nil
}

// Driver returns the configured driver name.
func (s *SQLStore) Driver() string { return s.driver }

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) fail(ctx context.Context, op string, err error) error {
	metrics.RecordLedgerError(op)
	metrics.RecordErrorByComponent("ledger", op)
	s.log.Error(ctx, "ledger operation failed", logger.String("op", op), logger.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrLedger, op, err)
}

func safeRollback(ctx context.Context, log logger.Logger, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Warn(ctx, "rollback failed", logger.Error(err))
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
