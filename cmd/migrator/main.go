package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/niksmo/keyshop/internal/adapter/storage"
	"github.com/spf13/pflag"
)

const (
	driverFlag  = "driver"
	dsnFlag     = "dsn"
	verboseFlag = "verbose"

	connectTimeout = 10 * time.Second
)

func main() {
	driver, dsn, verbose := getFlagsValues()
	validateFlags(driver, dsn)
	makeMigrations(driver, dsn, verbose)
}

func getFlagsValues() (driver, dsn string, verbose bool) {
	d := pflag.StringP(driverFlag, "d", string(storage.DriverPostgres),
		"sql driver: postgres or sqlite")
	s := pflag.StringP(dsnFlag, "s", "", "data source name")
	v := pflag.BoolP(verboseFlag, "v", true, "log every applied migration")
	pflag.Parse()
	return *d, *s, *v
}

func validateFlags(driver, dsn string) {
	var errs []error

	if dsn == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", dsnFlag))
	}

	switch storage.Driver(driver) {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("--%s flag: unknown driver %q",
			driverFlag, driver))
	}

	if len(errs) != 0 {
		slog.Error("invalid args", "err", errors.Join(errs...))
		fallDown()
	}
}

func makeMigrations(driver, dsn string, verbose bool) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := storage.Open(ctx, storage.Driver(driver), dsn)
	if err != nil {
		slog.Error("failed to connect", "err", err)
		fallDown()
	}
	defer db.Close()

	if err := storage.Migrate(db, verbose); err != nil {
		slog.Error("failed to migrate", "err", err)
		db.Close()
		fallDown()
	}
	slog.Info("migration applied")
}

func fallDown() {
	os.Exit(2)
}
