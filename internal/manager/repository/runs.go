package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
)

const runColumns = `id, scraper_name, source_id, started_at, completed_at, duration_seconds, status,
	decisions_found, decisions_imported, decisions_skipped, decisions_updated, errors,
	from_date, to_date, details, error_message`

func (s *baseStore) CreateRun(ctx context.Context, run *models.IngestionRun) error {
	details, err := encodeJSON(run.Details)
	if err != nil {
		return err
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	query := `
		INSERT INTO ingestion_runs (id, scraper_name, source_id, started_at, status, from_date, to_date, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.q(query), run.ID, run.ScraperName, nullString(run.SourceID),
		formatTime(run.StartedAt), run.Status, formatDate(run.FromDate), formatDate(run.ToDate), details)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to create run")
	}
	return err
}

// FinishRun writes the terminal state. A run that already left the running
// state is not touched and ErrRunNotRunning is returned.
func (s *baseStore) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	if run.Status != models.RunStatusCompleted && run.Status != models.RunStatusFailed {
		return fmt.Errorf("%w: %q", ErrRunStatus, run.Status)
	}
	details, err := encodeJSON(run.Details)
	if err != nil {
		return err
	}

	var duration any
	if run.DurationSeconds != nil {
		duration = *run.DurationSeconds
	}

	query := `
		UPDATE ingestion_runs SET completed_at = ?, duration_seconds = ?, status = ?,
		       decisions_found = ?, decisions_imported = ?, decisions_skipped = ?,
		       decisions_updated = ?, errors = ?, details = ?, error_message = ?
		WHERE id = ? AND status = 'running'
	`
	res, err := s.db.ExecContext(ctx, s.q(query), formatTimePtr(run.CompletedAt), duration, run.Status,
		run.DecisionsFound, run.DecisionsImported, run.DecisionsSkipped, run.DecisionsUpdated,
		run.Errors, details, nullString(run.ErrorMessage), run.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to finish run")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrRunNotRunning)
	}
	return nil
}

func (s *baseStore) ListRuns(ctx context.Context, sourceID string, limit int) ([]*models.IngestionRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingestion_runs`
	var args []any
	if sourceID != "" {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.IngestionRun
	for rows.Next() {
		var r models.IngestionRun
		var sourceIDCol, errorMessage sql.NullString
		var startedAt, completedAt, fromDate, toDate nullTime
		var duration sql.NullFloat64
		var details jsonMap
		err := rows.Scan(&r.ID, &r.ScraperName, &sourceIDCol, &startedAt, &completedAt, &duration,
			&r.Status, &r.DecisionsFound, &r.DecisionsImported, &r.DecisionsSkipped,
			&r.DecisionsUpdated, &r.Errors, &fromDate, &toDate, &details, &errorMessage)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan run")
			return nil, err
		}
		r.SourceID = stringPtr(sourceIDCol)
		r.StartedAt = startedAt.Time
		r.CompletedAt = completedAt.Ptr()
		if duration.Valid {
			v := duration.Float64
			r.DurationSeconds = &v
		}
		r.FromDate = fromDate.Ptr()
		r.ToDate = toDate.Ptr()
		r.Details = details
		r.ErrorMessage = stringPtr(errorMessage)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
