package migrations

import (
	"errors"
	"strings"
	"testing"

	"github.com/code-sleuth/caselaw-go/pkg/db"
)

func TestSchema(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		dim         int
		contains    string
		expectError error
	}{
		{name: "sqlite", driver: db.DriverSQLite, contains: "USING fts5"},
		{name: "libsql shares sqlite dialect", driver: db.DriverLibSQL, contains: "decisions_fts"},
		{name: "postgres sized vector", driver: db.DriverPostgres, dim: 1536, contains: "vector(1536)"},
		{name: "postgres without dimension", driver: db.DriverPostgres, expectError: ErrInvalidDimension},
		{name: "unknown driver", driver: "mysql", expectError: db.ErrUnsupportedDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := Schema(tt.driver, tt.dim)
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("Expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !strings.Contains(schema, tt.contains) {
				t.Errorf("Expected schema to contain %q", tt.contains)
			}
			if strings.Contains(schema, "{{") {
				t.Error("Schema still contains a template placeholder")
			}
		})
	}
}
