package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/severity"
)

// CreateRun records a job and returns its ID
func (db *DB) CreateRun(ctx context.Context, job *compare.Job) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO compare_runs (id, group_name, build, mode, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		job.ID, job.Group, job.Build, string(job.Mode), string(job.Status), job.CreatedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun stores the final status, error and counts of a job
func (db *DB) CompleteRun(ctx context.Context, job *compare.Job) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE compare_runs SET status = $1, error = $2, total = $3, completed_at = COALESCE($4, NOW())
		 WHERE id = $5`,
		string(job.Status), nullable(job.Error), job.Result.Total(), job.CompletedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return db.SaveCounts(ctx, job.ID, job.Result.Counts())
}

// SaveCounts upserts the per-level unit counts of a run
func (db *DB) SaveCounts(ctx context.Context, runID uuid.UUID, counts map[severity.Level]int) error {
	batch := &pgx.Batch{}
	for level, count := range counts {
		batch.Queue(
			`INSERT INTO compare_counts (run_id, level, count) VALUES ($1, $2, $3)
			 ON CONFLICT (run_id, level) DO UPDATE SET count = $3`,
			runID, level.String(), count,
		)
	}
	if err := db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save counts: %w", err)
	}
	return nil
}

// SaveUnit upserts the result of one unit
func (db *DB) SaveUnit(ctx context.Context, runID uuid.UUID, unit compare.UnitResult) error {
	record, err := unitRecord(runID, unit)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO compare_units (run_id, campaign, size, type, score, level, pairs, diagnostics, error, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (run_id, campaign, size, type) DO UPDATE SET
		   score = $5, level = $6, pairs = $7, diagnostics = $8, error = $9, elapsed_ms = $10`,
		record.RunID, record.Campaign, record.Size, record.Type, record.Score, record.Level,
		record.Pairs, record.Diagnostics, record.Error, record.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("failed to save unit %s/%s/%s: %w", unit.Campaign, unit.Size, unit.Type, err)
	}
	return nil
}

// GetRun retrieves a run and its counts by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, group_name, build, mode, status, error, total, created_at, completed_at
		 FROM compare_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Group, &run.Build, &run.Mode, &run.Status, &run.Error, &run.Total,
		&run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := db.pool.Query(ctx, `SELECT level, count FROM compare_counts WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run counts: %w", err)
	}
	defer rows.Close()

	run.Counts = make(map[string]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		run.Counts[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run counts: %w", err)
	}
	return &run, nil
}

// ListUnits returns the units of a run at level atLeast or above, worst first
func (db *DB) ListUnits(ctx context.Context, runID uuid.UUID, atLeast severity.Level) ([]Unit, error) {
	var levels []string
	for _, l := range severity.Levels() {
		if l >= atLeast {
			levels = append(levels, l.String())
		}
	}
	rows, err := db.pool.Query(ctx,
		`SELECT run_id, campaign, size, type, score, level, pairs, diagnostics, error, elapsed_ms
		 FROM compare_units WHERE run_id = $1 AND level = ANY($2)
		 ORDER BY score DESC NULLS LAST, campaign, size, type`,
		runID, levels,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.RunID, &u.Campaign, &u.Size, &u.Type, &u.Score, &u.Level,
			&u.Pairs, &u.Diagnostics, &u.Error, &u.ElapsedMS); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read units: %w", err)
	}
	return units, nil
}

// unitRecord converts a unit result into its stored form.
func unitRecord(runID uuid.UUID, unit compare.UnitResult) (Unit, error) {
	record := Unit{
		RunID:       runID,
		Campaign:    unit.Campaign,
		Size:        unit.Size,
		Type:        unit.Type,
		Level:       unit.Level.String(),
		Diagnostics: unit.Diagnostics,
		Error:       nullable(unit.Error),
		ElapsedMS:   unit.Elapsed.Milliseconds(),
	}
	if !unit.Score.Invalid() {
		score := float64(unit.Score)
		record.Score = &score
	}
	if len(unit.Pairs) > 0 {
		pairs, err := json.Marshal(unit.Pairs)
		if err != nil {
			return Unit{}, fmt.Errorf("failed to marshal pairs: %w", err)
		}
		record.Pairs = pairs
	}
	return record, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
