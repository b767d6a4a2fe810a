package cmd

import (
	"testing"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
)

func TestIngestArgs(t *testing.T) {
	tests := []struct {
		name        string
		since       string
		until       string
		maxPages    int
		maxDepth    int
		depth       int
		expectError bool
		description string
	}{
		{name: "no window", maxDepth: unsetDepth, depth: unsetDepth, description: "empty flags leave the window open"},
		{name: "since only", since: "2024-01-01", maxDepth: unsetDepth, depth: unsetDepth, description: "until defaults later"},
		{name: "full window", since: "2024-01-01", until: "2024-06-30", maxDepth: unsetDepth, depth: unsetDepth, description: "both bounds parse"},
		{name: "inverted window", since: "2024-06-30", until: "2024-01-01", expectError: true, description: "until before since"},
		{name: "bad date", since: "01.01.2024", expectError: true, description: "dates are ISO"},
		{name: "negative pages", maxPages: -1, expectError: true, description: "bounds cannot be negative"},
		{name: "depth zero", maxDepth: 0, depth: 0, description: "an explicit zero depth is kept"},
		{name: "depth two", maxDepth: 2, depth: 2, description: "explicit depths pass through"},
		{name: "negative depth", maxDepth: -5, expectError: true, description: "depths below the unset marker are rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestSince, ingestUntil, ingestMaxPages, ingestMaxDepth = tt.since, tt.until, tt.maxPages, tt.maxDepth
			t.Cleanup(func() { ingestSince, ingestUntil, ingestMaxPages, ingestMaxDepth = "", "", 0, unsetDepth })

			args, err := ingestArgs()
			if tt.expectError {
				if err == nil {
					t.Errorf("%s: expected an error", tt.description)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tt.description, err)
			}
			if args.MaxDepth != tt.depth {
				t.Errorf("%s: expected depth %d, got %d", tt.description, tt.depth, args.MaxDepth)
			}
			if (tt.since == "") != (args.Since == nil) {
				t.Errorf("%s: since mismatch: %v", tt.description, args.Since)
			}
			if tt.since != "" && args.Since.Format(dateLayout) != tt.since {
				t.Errorf("%s: expected since %s, got %s", tt.description, tt.since, args.Since.Format(dateLayout))
			}
		})
	}
}

func TestCLIFilters(t *testing.T) {
	base := models.SearchFilters{Level: "federal", SourceIDs: []string{"bger"}}

	f, err := cliFilters(base, "2023-01-01", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if f.DateFrom == nil || f.DateFrom.Year() != 2023 || f.DateTo != nil {
		t.Errorf("Unexpected date bounds %v/%v", f.DateFrom, f.DateTo)
	}
	if f.Level != "federal" || len(f.SourceIDs) != 1 {
		t.Errorf("Expected flag filters to carry over, got %+v", f)
	}

	if _, err := cliFilters(base, "", "2023-13-01"); err == nil {
		t.Error("Expected invalid month to fail")
	}
}
