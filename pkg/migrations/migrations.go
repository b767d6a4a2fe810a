// Package migrations holds the embedded schema for each supported dialect.
package migrations

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/code-sleuth/caselaw-go/pkg/db"
)

//go:embed sqlite.sql
var sqliteSchema string

//go:embed postgres.sql
var postgresSchema string

var ErrInvalidDimension = errors.New("embedding dimension must be positive")

// Schema returns the DDL for driver. dim sizes the postgres vector column and
// is ignored by sqlite, which stores vectors as blobs.
func Schema(driver string, dim int) (string, error) {
	switch driver {
	case db.DriverSQLite, db.DriverLibSQL:
		return sqliteSchema, nil
	case db.DriverPostgres:
		if dim <= 0 {
			return "", ErrInvalidDimension
		}
		return strings.ReplaceAll(postgresSchema, "{{EMBEDDING_DIM}}", strconv.Itoa(dim)), nil
	default:
		return "", fmt.Errorf("%w: %s", db.ErrUnsupportedDriver, driver)
	}
}

// Apply executes the schema for database's dialect. Statements are idempotent.
func Apply(ctx context.Context, database *db.DB, dim int) error {
	schema, err := Schema(database.Driver, dim)
	if err != nil {
		return err
	}
	if _, err := database.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply %s schema: %w", database.Driver, err)
	}
	return nil
}
