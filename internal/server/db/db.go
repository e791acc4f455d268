package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/hashicorp/go-multierror"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/looplj/approvalhub/internal/log"
	_ "github.com/looplj/approvalhub/internal/pkg/sqlite"
)

// DB wraps a dialect-aware sql driver. Services build statements with
// Builder and run them through Query/Exec, so the same code serves
// postgres, mysql and sqlite.
type DB struct {
	drv     *entsql.Driver
	dialect string
	debug   bool
}

// New opens the configured database and brings its schema up to date.
func New(cfg Config) (*DB, error) {
	var (
		sqlDB     *sql.DB
		dbDialect string
		err       error
	)

	switch cfg.Dialect {
	case "postgres", "pgx", "postgresdb", "pg", "postgresql":
		sqlDB, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}

		dbDialect = dialect.Postgres
	case "sqlite3", "sqlite":
		sqlDB, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}

		// A pooled in-memory sqlite hands every connection its own
		// empty database, so pin the pool to one connection.
		if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
			sqlDB.SetMaxOpenConns(1)
		}

		dbDialect = dialect.SQLite
	case "mysql", "tidb":
		sqlDB, err = sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}

		dbDialect = dialect.MySQL
	default:
		return nil, fmt.Errorf("invalid dialect: %s", cfg.Dialect)
	}

	db := &DB{
		drv:     entsql.OpenDB(dbDialect, sqlDB),
		dialect: dbDialect,
		debug:   cfg.Debug,
	}

	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Dialect returns the normalized dialect name.
func (d *DB) Dialect() string {
	return d.dialect
}

// Builder returns a statement builder bound to the dialect.
func (d *DB) Builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.dialect)
}

// DB exposes the underlying pool for scanning rows.
func (d *DB) DB() *sql.DB {
	return d.drv.DB()
}

func (d *DB) Close() error {
	return d.drv.Close()
}

// Query runs a selector and returns its rows.
func (d *DB) Query(ctx context.Context, s *entsql.Selector) (*sql.Rows, error) {
	query, args := s.Query()
	d.logQuery(ctx, query, args)

	return d.DB().QueryContext(ctx, query, args...)
}

// QueryRow runs a selector expected to yield at most one row.
func (d *DB) QueryRow(ctx context.Context, s *entsql.Selector) *sql.Row {
	query, args := s.Query()
	d.logQuery(ctx, query, args)

	return d.DB().QueryRowContext(ctx, query, args...)
}

// Exec runs a built statement.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.logQuery(ctx, query, args)

	return d.DB().ExecContext(ctx, query, args...)
}

// InTx runs fn inside a transaction, rolling back on error.
func (d *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierror.Append(err, rbErr)
		}

		return err
	}

	return tx.Commit()
}

func (d *DB) logQuery(ctx context.Context, query string, args []any) {
	if d.debug {
		log.Debug(ctx, "db statement", log.String("query", query), log.Any("args", args))
	}
}
