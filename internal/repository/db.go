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

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/romanzh1/quizzr-srs/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations
var migrationsFS embed.FS

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_time_format=sqlite"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var _ models.Repository = (*DB)(nil)

type DB struct {
	db      *sqlx.DB
	tx      *sqlx.Tx
	dialect Dialect
	sb      squirrel.StatementBuilderType
}

func Open(dialect Dialect, dsn string, maxIdle, maxOpen int) (*DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch dialect {
	case Postgres:
		db, err = sqlx.Open("pgx", dsn)
	case SQLite:
		db, err = sqlx.Open("sqlite", sqliteDSN(dsn))
		// one writer; the pool would only queue on SQLITE_BUSY otherwise
		maxIdle, maxOpen = 1, 1
	default:
		return nil, fmt.Errorf("open database (dialect: %s): %w", dialect, models.ErrInvalidArgument)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database (dialect: %s): %w", dialect, err)
	}

	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database (dialect: %s): %w", dialect, err)
	}

	placeholder := squirrel.PlaceholderFormat(squirrel.Question)
	if dialect == Postgres {
		placeholder = squirrel.Dollar
	}

	return &DB{
		db:      db,
		dialect: dialect,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

func (r *DB) Close() error {
	return r.db.Close()
}

func (r *DB) Dialect() Dialect {
	return r.dialect
}

func (r *DB) provider() (*goose.Provider, error) {
	gooseDialect := goose.DialectSQLite3
	if r.dialect == Postgres {
		gooseDialect = goose.DialectPostgres
	}

	fsys, err := fs.Sub(migrationsFS, "migrations/"+string(r.dialect))
	if err != nil {
		return nil, fmt.Errorf("open migrations (dialect: %s): %w", r.dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, r.db.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider (dialect: %s): %w", r.dialect, err)
	}

	return provider, nil
}

func (r *DB) Up(ctx context.Context) error {
	provider, err := r.provider()
	if err != nil {
		return err
	}

	if _, err = provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations (dialect: %s): %w", r.dialect, err)
	}

	return nil
}

func (r *DB) Reset(ctx context.Context) error {
	provider, err := r.provider()
	if err != nil {
		return err
	}

	if _, err = provider.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("reset migrations (dialect: %s): %w", r.dialect, err)
	}

	return nil
}

func (r *DB) begin(ctx context.Context) (*DB, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", classify(err))
	}

	return &DB{
		db:      r.db,
		tx:      tx,
		dialect: r.dialect,
		sb:      r.sb,
	}, nil
}

func (r *DB) commit() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to commit")
	}
	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

func (r *DB) rollback() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to rollback")
	}
	return r.tx.Rollback()
}

// RunInTx runs fn against a repository bound to a new transaction.
// Nested calls reuse the outer transaction.
func (r *DB) RunInTx(ctx context.Context, fn func(models.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	txRepo, err := r.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = txRepo.rollback()
			panic(p)
		}
	}()

	if err = fn(txRepo); err != nil {
		_ = txRepo.rollback()
		return err
	}

	return txRepo.commit()
}

func (r *DB) executor() sqlx.ExtContext {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.executor().ExecContext(ctx, query, args...)
}

func (r *DB) queryRow(ctx context.Context, query string, args ...any) *sqlx.Row {
	return r.executor().QueryRowxContext(ctx, query, args...)
}

func (r *DB) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, r.executor(), dest, query, args...)
}

func (r *DB) sel(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.executor(), dest, query, args...)
}

// rebind converts a '?' query to the dialect's placeholders.
func (r *DB) rebind(query string) string {
	return r.db.Rebind(query)
}

// classify maps driver errors onto the model sentinels, keeping the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}

	if isConflict(err) {
		return fmt.Errorf("%w: %w", models.ErrConflict, err)
	}

	return err
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}

	return false
}

func rowsAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows (%s: %d): %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
	}
	return nil
}
