package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/niksmo/keyshop/internal/core/domain"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown sql driver")

// SQLDB is a connection pool aware of its SQL dialect.
type SQLDB struct {
	*sql.DB
	driver Driver
	dsn    string
}

// Open connects to the database and pings it.
//
// SQLite is limited to a single connection, which serializes writers
// and keeps an in-memory database alive for the pool lifetime.
func Open(ctx context.Context, driver Driver, dsn string) (SQLDB, error) {
	const op = "storage.Open"
	log := slog.With("op", op, "driver", driver)

	var (
		db  *sql.DB
		err error
	)

	switch driver {
	case DriverPostgres:
		var connConfig *pgx.ConnConfig
		connConfig, err = pgx.ParseConfig(dsn)
		if err != nil {
			return SQLDB{}, fmt.Errorf("%s: %w", op, err)
		}
		db, err = sql.Open("pgx", stdlib.RegisterConnConfig(connConfig))
	case DriverSQLite:
		db, err = sql.Open("sqlite", dsn)
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	default:
		return SQLDB{}, fmt.Errorf("%s: %w: %q", op, ErrUnknownDriver, driver)
	}
	if err != nil {
		return SQLDB{}, fmt.Errorf("%s: %w", op, err)
	}

	s := SQLDB{DB: db, driver: driver, dsn: dsn}
	if err := s.PingContext(ctx); err != nil {
		_ = db.Close()
		return SQLDB{}, fmt.Errorf("%s: database is unavailable: %w", op, err)
	}

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return SQLDB{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("database is available")
	return s, nil
}

func (s SQLDB) Driver() Driver {
	return s.driver
}

func (s SQLDB) Close() {
	const op = "SQLDB.Close"
	log := slog.With("op", op)

	log.Info("closing sql database...")

	if err := s.DB.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("sql database is closed")
}

// inTx runs fn inside a transaction that is committed when fn returns nil
// and rolled back otherwise.
func (s SQLDB) inTx(
	ctx context.Context, op string, fn func(tx *sql.Tx) error,
) (txErr error) {
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	defer func() {
		if txErr == nil {
			if err := tx.Commit(); err != nil {
				txErr = fmt.Errorf("failed to commit: %w", err)
			}
			return
		}

		if err := tx.Rollback(); err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	return fn(tx)
}

// forUpdate is the row lock clause. SQLite locks the whole database on
// write, so it needs none.
func (s SQLDB) forUpdate() string {
	if s.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// containsExpr is a case-sensitive substring test of col against the
// placeholder ph.
func (s SQLDB) containsExpr(col, ph string) string {
	if s.driver == DriverPostgres {
		return "strpos(" + col + ", " + ph + ") > 0"
	}
	return "instr(" + col + ", " + ph + ") > 0"
}

func (s SQLDB) isUniqueViolation(err error) bool {
	switch s.driver {
	case DriverPostgres:
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
	case DriverSQLite:
		var liteErr *sqlite.Error
		return errors.As(err, &liteErr) &&
			liteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// expectOne turns a zero row count into a not found error.
func expectOne(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError(entity, id)
	}
	return nil
}
