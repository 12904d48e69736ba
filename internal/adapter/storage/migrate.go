package storage

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationLogger adapts slog to [migrate.Logger].
type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger(verbose bool) *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default().With("component", "migrate"),
		verbose: verbose,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

// Migrate applies every embedded up migration of the database dialect.
//
// Postgres is migrated over its own connection taken from the DSN;
// SQLite is migrated in place so in-memory databases work.
func Migrate(db SQLDB, verbose bool) error {
	const op = "storage.Migrate"

	src, err := iofs.New(migrationsFS, "migrations/"+string(db.driver))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var m *migrate.Migrate
	switch db.driver {
	case DriverPostgres:
		m, err = migrate.NewWithSourceInstance("iofs", src, pgx5URL(db.dsn))
	case DriverSQLite:
		var drv database.Driver
		drv, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
		if err == nil {
			m, err = migrate.NewWithInstance("iofs", src, "sqlite", drv)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownDriver, db.driver)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.Log = NewMigrationLogger(verbose)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return closeMigrate(db, m)
		}
		_ = closeMigrate(db, m)
		return fmt.Errorf("%s: %w", op, err)
	}

	m.Log.Printf("migrations applied")
	return closeMigrate(db, m)
}

// closeMigrate releases the migration connection. The SQLite driver shares
// the application pool, closing it would close the pool too.
func closeMigrate(db SQLDB, m *migrate.Migrate) error {
	if db.driver == DriverSQLite {
		return nil
	}
	srcErr, dbErr := m.Close()
	return errors.Join(srcErr, dbErr)
}

// pgx5URL rewrites a postgres:// DSN for the pgx/v5 migrate driver.
func pgx5URL(dsn string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}
