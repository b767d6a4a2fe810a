package repository

import (
	"regexp"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
)

const maxQueryTerms = 32

var termRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// buildFilters renders filters as " AND ..." over the decisions alias d.
func buildFilters(f *models.SearchFilters) (string, []any) {
	if f == nil {
		return "", nil
	}

	var (
		clauses []string
		args    []any
	)
	if len(f.SourceIDs) > 0 {
		clauses = append(clauses, "d.source_id IN ("+placeholders(len(f.SourceIDs))+")")
		for _, id := range f.SourceIDs {
			args = append(args, id)
		}
	}
	if f.Level != "" {
		clauses = append(clauses, "d.level = ?")
		args = append(args, strings.ToLower(f.Level))
	}
	if f.Canton != "" {
		clauses = append(clauses, "d.canton = ?")
		args = append(args, strings.ToUpper(f.Canton))
	}
	if f.Language != "" {
		clauses = append(clauses, "d.language = ?")
		args = append(args, strings.ToLower(f.Language))
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "d.decision_date >= ?")
		args = append(args, formatDate(f.DateFrom))
	}
	if f.DateTo != nil {
		clauses = append(clauses, "d.decision_date <= ?")
		args = append(args, formatDate(f.DateTo))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// queryTerms lowercases the word tokens of a free-text query, dropping
// single characters and duplicates.
func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range termRe.FindAllString(strings.ToLower(query), -1) {
		if len([]rune(tok)) < 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return terms
}

// ftsMatchQuery ORs quoted terms for an FTS5 MATCH.
func ftsMatchQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

// tsQuery ORs terms for to_tsquery('simple', ...).
func tsQuery(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		// underscores split tokens in the simple parser
		for _, p := range strings.Split(t, "_") {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.Join(parts, " | ")
}
