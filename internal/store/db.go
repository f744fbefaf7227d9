// Package store is the document-collection layer: it persists models built
// from model.Schema definitions on top of GORM and reports every write as a
// taxonomised outcome.Code.
//
// Each Collection owns one table derived from its schema. Nested model fields
// are flattened into "<key>_<subkey>" columns, arrays and dicts are stored as
// JSON text, and the document identifier lives in the "_id" column as the
// 24-character hex form of an oid.ID, so lexical order is creation order.
//
// Both the embedded SQLite driver (default, pure Go) and PostgreSQL are
// supported; column types are chosen per dialect at migration time.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and tunes the database handle.
type Options struct {
	Driver string
	DSN    string
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
	// Silent disables GORM's own query logging.
	Silent bool
}

// Open connects to the configured driver and applies pool settings.
func Open(o Options) (*gorm.DB, error) {
	gcfg := &gorm.Config{}
	if o.Silent {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch o.Driver {
	case "", DriverSQLite:
		db, err = OpenSQLite(o.DSN, gcfg)
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(o.DSN), gcfg)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", o.Driver)
	}
	if err != nil {
		return nil, err
	}

	if o.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." && !isMemoryDSN(path) {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	if gcfg == nil {
		gcfg = &gorm.Config{}
	}

	db, err := gorm.Open(sqlite.Open(path), gcfg)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")
	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || (len(dsn) >= 5 && dsn[:5] == "file:")
}

func isPostgres(db *gorm.DB) bool { return db.Dialector.Name() == DriverPostgres }
