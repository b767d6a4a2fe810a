package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
)

const decisionColumns = `d.id, d.source_id, d.source_name, d.level, d.canton, d.court, d.chamber,
	d.docket, d.decision_date, d.published_date, d.title, d.language, d.url, d.pdf_url,
	d.content_text, d.content_hash, d.meta, d.indexed_at, d.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*models.Decision, error) {
	var d models.Decision
	var canton, court, chamber, docket, title, language, pdfURL sql.NullString
	var decisionDate, publishedDate, indexedAt, updatedAt nullTime
	var meta jsonMap
	err := row.Scan(&d.ID, &d.SourceID, &d.SourceName, &d.Level, &canton, &court, &chamber,
		&docket, &decisionDate, &publishedDate, &title, &language, &d.URL, &pdfURL,
		&d.ContentText, &d.ContentHash, &meta, &indexedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Canton = stringPtr(canton)
	d.Court = stringPtr(court)
	d.Chamber = stringPtr(chamber)
	d.Docket = stringPtr(docket)
	d.Title = stringPtr(title)
	d.Language = stringPtr(language)
	d.PDFURL = stringPtr(pdfURL)
	d.DecisionDate = decisionDate.Ptr()
	d.PublishedDate = publishedDate.Ptr()
	d.IndexedAt = indexedAt.Time
	d.UpdatedAt = updatedAt.Ptr()
	d.Meta = meta
	return &d, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (s *baseStore) GetContentHash(ctx context.Context, id string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT content_hash FROM decisions WHERE id = ?`), id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("decision_id", id).Msg("Failed to read content hash")
		return "", false, err
	}
	return hash, true, nil
}

func (s *baseStore) InsertDecision(ctx context.Context, d *models.Decision) error {
	meta, err := encodeJSON(d.Meta)
	if err != nil {
		return err
	}
	if d.IndexedAt.IsZero() {
		d.IndexedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO decisions (id, source_id, source_name, level, canton, court, chamber, docket,
		                       decision_date, published_date, title, language, url, pdf_url,
		                       content_text, content_hash, meta, indexed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.q(query), d.ID, d.SourceID, d.SourceName, d.Level,
		nullString(d.Canton), nullString(d.Court), nullString(d.Chamber), nullString(d.Docket),
		formatDate(d.DecisionDate), formatDate(d.PublishedDate), nullString(d.Title),
		nullString(d.Language), d.URL, nullString(d.PDFURL), d.ContentText, d.ContentHash,
		meta, formatTime(d.IndexedAt), formatTimePtr(d.UpdatedAt))
	if isConflict(err) {
		return fmt.Errorf("insert decision %s: %w", d.ID, ErrConflict)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("decision_id", d.ID).Msg("Failed to insert decision")
		return err
	}
	return nil
}

func (s *baseStore) UpdateDecision(ctx context.Context, d *models.Decision) error {
	meta, err := encodeJSON(d.Meta)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	d.UpdatedAt = &now

	query := `
		UPDATE decisions SET source_id = ?, source_name = ?, level = ?, canton = ?, court = ?,
		       chamber = ?, docket = ?, decision_date = ?, published_date = ?, title = ?,
		       language = ?, url = ?, pdf_url = ?, content_text = ?, content_hash = ?, meta = ?,
		       updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, s.q(query), d.SourceID, d.SourceName, d.Level,
		nullString(d.Canton), nullString(d.Court), nullString(d.Chamber), nullString(d.Docket),
		formatDate(d.DecisionDate), formatDate(d.PublishedDate), nullString(d.Title),
		nullString(d.Language), d.URL, nullString(d.PDFURL), d.ContentText, d.ContentHash,
		meta, formatTime(now), d.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("decision_id", d.ID).Msg("Failed to update decision")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update decision %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

func (s *baseStore) GetDecision(ctx context.Context, id string) (*models.Decision, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+decisionColumns+` FROM decisions d WHERE d.id = ?`), id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("decision_id", id).Msg("Failed to get decision")
		return nil, err
	}
	return d, nil
}

func (s *baseStore) GetDecisions(ctx context.Context, ids []string) (map[string]*models.Decision, error) {
	out := make(map[string]*models.Decision, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + decisionColumns + ` FROM decisions d WHERE d.id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan decision")
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

func (s *baseStore) ListDecisions(
	ctx context.Context,
	filters *models.SearchFilters,
	limit, offset int,
) ([]*models.Decision, error) {
	where, args := buildFilters(filters)
	query := `SELECT ` + decisionColumns + ` FROM decisions d WHERE 1 = 1` + where +
		` ORDER BY d.decision_date IS NULL, d.decision_date DESC, d.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return s.queryDecisions(ctx, query, args...)
}

func (s *baseStore) queryDecisions(ctx context.Context, query string, args ...any) ([]*models.Decision, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query decisions")
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan decision")
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (s *baseStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.q(query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
