package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog"
	"github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite" // sqlite driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
)

const defaultSQLitePath = "caselaw.db"

var (
	ErrDatabaseURLRequired = errors.New("TURSO_DATABASE_URL environment variable is required")
	ErrAuthTokenRequired   = errors.New("TURSO_AUTH_TOKEN environment variable is required")
	ErrPostgresURLRequired = errors.New("DATABASE_URL environment variable is required for postgres")
	ErrUnsupportedDriver   = errors.New("unsupported database driver")
)

// DB wraps *sql.DB and remembers which SQL dialect it speaks.
type DB struct {
	*sql.DB
	Driver string
}

// NewConnection opens the database selected by DATABASE_DRIVER.
func NewConnection() (*DB, error) {
	driver := strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if driver == "" {
		driver = DriverSQLite
	}
	return Open(driver, os.Getenv("DATABASE_URL"))
}

// Open connects with an explicit driver and DSN. For libsql the DSN and auth
// token come from TURSO_DATABASE_URL and TURSO_AUTH_TOKEN when dsn is empty.
func Open(driver, dsn string) (*DB, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	var (
		sqlDB *sql.DB
		err   error
	)

	switch driver {
	case DriverLibSQL:
		sqlDB, err = openLibSQL(dsn, logger)
	case DriverSQLite:
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		sqlDB, err = sql.Open("sqlite", SQLiteDSN(dsn))
		if err == nil {
			// One writer at a time; readers share the WAL.
			sqlDB.SetMaxOpenConns(8)
		}
	case DriverPostgres:
		if dsn == "" {
			logger.Error().Msg("DATABASE_URL env variable not set")
			return nil, ErrPostgresURLRequired
		}
		sqlDB, err = sql.Open("postgres", dsn)
	default:
		logger.Error().Str("driver", driver).Msg("unsupported database driver")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	if err != nil {
		logger.Err(err).Str("driver", driver).Msg("failed to open database")
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		logger.Err(err).Str("driver", driver).Msg("failed to ping database")
		_ = sqlDB.Close()
		return nil, err
	}

	return &DB{DB: sqlDB, Driver: driver}, nil
}

func openLibSQL(dsn string, logger zerolog.Logger) (*sql.DB, error) {
	dbURL := dsn
	if dbURL == "" {
		dbURL = os.Getenv("TURSO_DATABASE_URL")
	}
	if strings.EqualFold(dbURL, "") {
		logger.Error().Msg("TURSO_DATABASE_URL env variable not set")
		return nil, ErrDatabaseURLRequired
	}

	authToken := os.Getenv("TURSO_AUTH_TOKEN")
	if strings.EqualFold(authToken, "") {
		logger.Error().Msg("TURSO_AUTH_TOKEN env variable not set")
		return nil, ErrAuthTokenRequired
	}

	connector, err := libsql.NewConnector(dbURL, libsql.WithAuthToken(authToken))
	if err != nil {
		logger.Err(err).Msg("failed to create connector")
		return nil, err
	}

	return sql.OpenDB(connector), nil
}

// SQLiteDSN appends the pragmas every local sqlite connection needs.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// IsSQLite reports whether the connection speaks the sqlite dialect.
func (db *DB) IsSQLite() bool {
	return db.Driver == DriverSQLite || db.Driver == DriverLibSQL
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Transaction runs fn inside a transaction, committing on success.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
