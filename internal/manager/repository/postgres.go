package repository

import (
	"context"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/db"
)

// vectorCandidateFactor widens the chunk pool so enough distinct decisions
// survive the best-chunk-per-decision collapse.
const vectorCandidateFactor = 5

// PostgresStore ranks with a weighted tsvector and searches chunks through
// a pgvector cosine index.
type PostgresStore struct {
	*baseStore
}

func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{baseStore: newBaseStore(database)}
}

func (s *PostgresStore) SearchLexical(
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
		SELECT d.id, ts_rank_cd(d.search_tsv, q) AS rank
		FROM decisions d, to_tsquery('simple', ?) q
		WHERE d.search_tsv @@ q` + where + `
		ORDER BY rank DESC, d.id
		LIMIT ?
	`
	args = append([]any{tsQuery(terms)}, args...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.q(sqlQuery), args...)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("Failed lexical search")
		return nil, err
	}
	defer rows.Close()

	var matches []*models.LexicalMatch
	for rows.Next() {
		var m models.LexicalMatch
		if err := rows.Scan(&m.DecisionID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) SearchVector(
	ctx context.Context,
	vector []float32,
	filters *models.SearchFilters,
	limit int,
) ([]*models.VectorMatch, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	where, args := buildFilters(filters)
	vec := s.vectorArg(vector)
	sqlQuery := `
		SELECT c.id, c.decision_id, c.text, 1 - (c.embedding <=> ?) AS similarity
		FROM chunks c
		JOIN decisions d ON d.id = c.decision_id
		WHERE c.embedding IS NOT NULL` + where + `
		ORDER BY c.embedding <=> ?
		LIMIT ?
	`
	args = append([]any{vec}, args...)
	args = append(args, vec, limit*vectorCandidateFactor)

	rows, err := s.db.QueryContext(ctx, s.q(sqlQuery), args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed vector search")
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var matches []*models.VectorMatch
	for rows.Next() {
		var m models.VectorMatch
		if err := rows.Scan(&m.ChunkID, &m.DecisionID, &m.ChunkText, &m.Similarity); err != nil {
			return nil, err
		}
		// rows arrive nearest first, so the first chunk seen is the best one
		if seen[m.DecisionID] {
			continue
		}
		seen[m.DecisionID] = true
		matches = append(matches, &m)
		if len(matches) == limit {
			break
		}
	}
	return matches, rows.Err()
}

func (s *PostgresStore) SearchByDate(
	ctx context.Context,
	query string,
	filters *models.SearchFilters,
	ascending bool,
	limit, offset int,
) ([]*models.Decision, int, error) {
	where, args := buildFilters(filters)
	if terms := queryTerms(query); len(terms) > 0 {
		where = ` AND d.search_tsv @@ to_tsquery('simple', ?)` + where
		args = append([]any{tsQuery(terms)}, args...)
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
