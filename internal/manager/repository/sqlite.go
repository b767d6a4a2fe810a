package repository

import (
	"context"
	"sort"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/db"
	"github.com/code-sleuth/caselaw-go/pkg/util"
)

// SQLiteStore serves local sqlite and remote libsql databases. Lexical search
// uses FTS5 bm25 with title and docket weighted above the body; vector search
// is a cosine scan over stored chunk blobs.
type SQLiteStore struct {
	*baseStore
}

func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{baseStore: newBaseStore(database)}
}

func (s *SQLiteStore) SearchLexical(
	ctx context.Context,
	query string,
	filters *models.SearchFilters,
	limit int,
) ([]*models.LexicalMatch, error) {
	terms := queryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	where, args := buildFilters(filters)
	sqlQuery := `
		SELECT d.id, bm25(decisions_fts, 10.0, 10.0, 1.0) AS score
		FROM decisions_fts
		JOIN decisions d ON d.rowid = decisions_fts.rowid
		WHERE decisions_fts MATCH ?` + where + `
		ORDER BY score
		LIMIT ?
	`
	args = append([]any{ftsMatchQuery(terms)}, args...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("Failed lexical search")
		return nil, err
	}
	defer rows.Close()

	var matches []*models.LexicalMatch
	for rows.Next() {
		var m models.LexicalMatch
		var rank float64
		if err := rows.Scan(&m.DecisionID, &rank); err != nil {
			return nil, err
		}
		// bm25 is lower-is-better
		m.Score = -rank
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (s *SQLiteStore) SearchVector(
	ctx context.Context,
	vector []float32,
	filters *models.SearchFilters,
	limit int,
) ([]*models.VectorMatch, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	where, args := buildFilters(filters)
	sqlQuery := `
		SELECT c.id, c.decision_id, c.text, c.embedding
		FROM chunks c
		JOIN decisions d ON d.id = c.decision_id
		WHERE c.embedding IS NOT NULL` + where

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed vector search")
		return nil, err
	}
	defer rows.Close()

	best := make(map[string]*models.VectorMatch)
	for rows.Next() {
		var m models.VectorMatch
		var blob []byte
		if err := rows.Scan(&m.ChunkID, &m.DecisionID, &m.ChunkText, &blob); err != nil {
			return nil, err
		}
		vec, err := util.DecodeVector(blob)
		if err != nil || len(vec) != len(vector) {
			continue
		}
		m.Similarity = util.CosineSimilarity(vector, vec)
		if cur, ok := best[m.DecisionID]; !ok || m.Similarity > cur.Similarity {
			best[m.DecisionID] = &m
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	matches := make([]*models.VectorMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].DecisionID < matches[j].DecisionID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *SQLiteStore) SearchByDate(
	ctx context.Context,
	query string,
	filters *models.SearchFilters,
	ascending bool,
	limit, offset int,
) ([]*models.Decision, int, error) {
	where, args := buildFilters(filters)
	if terms := queryTerms(query); len(terms) > 0 {
		where = ` AND d.rowid IN (SELECT rowid FROM decisions_fts WHERE decisions_fts MATCH ?)` + where
		args = append([]any{ftsMatchQuery(terms)}, args...)
	}

	total, err := s.count(ctx, `SELECT COUNT(*) FROM decisions d WHERE 1 = 1`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	listQuery := `SELECT ` + decisionColumns + ` FROM decisions d WHERE 1 = 1` + where +
		` ORDER BY d.decision_date IS NULL, d.decision_date ` + direction + `, d.id LIMIT ? OFFSET ?`
	decisions, err := s.queryDecisions(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return decisions, total, nil
}
