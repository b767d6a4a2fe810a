package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/code-sleuth/caselaw-go/pkg/db"
	"github.com/code-sleuth/caselaw-go/pkg/migrations"
)

// TestEmbeddingDim sizes the postgres vector column in integration tests.
const TestEmbeddingDim = 3

// SetupSQLiteDB returns a migrated sqlite database in a temp directory.
func SetupSQLiteDB(t *testing.T) *db.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "caselaw-test.db")
	database, err := db.Open(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}

	if err := migrations.Apply(context.Background(), database, TestEmbeddingDim); err != nil {
		database.Close()
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// SetupPostgresDB connects to DATABASE_URL inside a throwaway schema and runs
// migrations. The test is skipped when DATABASE_URL is not set.
func SetupPostgresDB(t *testing.T) *db.DB {
	t.Helper()
	// Load environment variables from .env file
	if err := LoadEnvFromFile("../../../.env"); err != nil {
		t.Logf("Warning: Failed to load .env file: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" || !strings.HasPrefix(dsn, "postgres") {
		t.Skip("DATABASE_URL not set to a postgres URL - skipping integration test")
	}

	admin, err := db.Open(db.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer admin.Close()

	schema := fmt.Sprintf("caselaw_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		t.Fatalf("Failed to create vector extension: %v", err)
	}
	if _, err := admin.Exec("CREATE SCHEMA " + schema); err != nil { // #nosec G202 -- generated name
		t.Fatalf("Failed to create schema: %v", err)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	database, err := db.Open(db.DriverPostgres, dsn+sep+"search_path="+schema+",public")
	if err != nil {
		t.Fatalf("Failed to connect to test schema: %v", err)
	}
	if err := migrations.Apply(context.Background(), database, TestEmbeddingDim); err != nil {
		database.Close()
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
		cleanup, err := db.Open(db.DriverPostgres, dsn)
		if err != nil {
			t.Logf("Warning: Failed to reconnect for cleanup: %v", err)
			return
		}
		defer cleanup.Close()
		if _, err := cleanup.Exec("DROP SCHEMA " + schema + " CASCADE"); err != nil { // #nosec G202 -- generated name
			t.Logf("Warning: Failed to drop schema %s: %v", schema, err)
		}
	})
	return database
}

// LoadEnvFromFile loads environment variables from a file.
func LoadEnvFromFile(filepath string) error {
	file, err := os.Open(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	// Read the file content and parse environment variables
	const maxFileSize = 4096
	content := make([]byte, maxFileSize)
	n, err := file.Read(content)
	if err != nil && n == 0 {
		return err
	}

	lines := strings.Split(string(content[:n]), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		// Split on first "=" to get key and value
		const expectedParts = 2
		parts := strings.SplitN(line, "=", expectedParts)
		if len(parts) == expectedParts {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			// Remove quotes if present
			if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") && len(value) >= 2 {
				value = value[1 : len(value)-1]
			}

			// Real environment wins over the file.
			if _, ok := os.LookupEnv(key); !ok {
				os.Setenv(key, value)
			}
		}
	}

	return nil
}

// GetRecordCount returns the row count of a table.
func GetRecordCount(t *testing.T, database *db.DB, table string) int {
	t.Helper()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table) // #nosec G201 -- table name is hardcoded, not user input
	var count int
	err := database.QueryRow(query).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to get record count: %v", err)
	}
	return count
}
