package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
)

const chunkColumns = `c.id, c.decision_id, c.chunk_index, c.text, c.overlap_chars, c.token_count,
	c.embedding, c.embedding_model, c.content_hash`

func (s *baseStore) scanChunk(row rowScanner) (*models.Chunk, error) {
	var (
		c          models.Chunk
		tokenCount sql.NullInt64
		model      sql.NullString
		hash       sql.NullString
	)
	emb := embedding{postgres: s.postgres}
	if err := row.Scan(&c.ID, &c.DecisionID, &c.Index, &c.Text, &c.OverlapChars,
		&tokenCount, &emb, &model, &hash); err != nil {
		return nil, err
	}
	if tokenCount.Valid {
		n := int(tokenCount.Int64)
		c.TokenCount = &n
	}
	c.Embedding = emb.Vec
	c.EmbeddingModel = stringPtr(model)
	c.ContentHash = hash.String
	return &c, nil
}

// ReplaceChunks deletes the decision's chunks and inserts the new set in one transaction.
func (s *baseStore) ReplaceChunks(ctx context.Context, decisionID string, chunks []*models.Chunk) error {
	insert := s.q(`
		INSERT INTO chunks (id, decision_id, chunk_index, text, overlap_chars, token_count,
		                    embedding, embedding_model, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM chunks WHERE decision_id = ?`), decisionID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		for _, c := range chunks {
			var tokens, hash any
			if c.TokenCount != nil {
				tokens = *c.TokenCount
			}
			if c.ContentHash != "" {
				hash = c.ContentHash
			}
			if _, err := tx.ExecContext(ctx, insert, c.ID, decisionID, c.Index, c.Text,
				c.OverlapChars, tokens, s.vectorArg(c.Embedding), nullString(c.EmbeddingModel),
				hash); err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("decision_id", decisionID).Msg("Failed to replace chunks")
	}
	return err
}

func (s *baseStore) GetChunks(ctx context.Context, decisionID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+chunkColumns+` FROM chunks c WHERE c.decision_id = ? ORDER BY c.chunk_index`),
		decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		c, err := s.scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *baseStore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+chunkColumns+` FROM chunks c WHERE c.id = ?`), id)
	c, err := s.scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	return c, err
}

// DecisionIDsNeedingIndex lists decisions without chunks, with unembedded
// chunks, or with chunks cut from another version of the text.
func (s *baseStore) DecisionIDsNeedingIndex(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT d.id FROM decisions d
		WHERE NOT EXISTS (SELECT 1 FROM chunks c WHERE c.decision_id = d.id)
		   OR EXISTS (
		       SELECT 1 FROM chunks c
		       WHERE c.decision_id = d.id
		         AND (c.embedding IS NULL OR c.content_hash IS NULL OR c.content_hash <> d.content_hash)
		   )
		ORDER BY d.id
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, s.q(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
