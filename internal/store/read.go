package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/scadunit/internal/harness"
)

// ErrRunNotFound is returned when a run id is not stored.
var ErrRunNotFound = errors.New("run not found")

// Run is the stored summary of one run.
type Run struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"run_id"`
	Command    string `json:"command"`
	Suite      string `json:"suite,omitempty"`
	Library    string `json:"library,omitempty"`
	Pass       bool   `json:"pass"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Digest     string `json:"digest"`
	RecordedAt string `json:"recorded_at"`
}

const runColumns = `seq, id, command, suite, library, pass, passed, failed, skipped, digest, recorded_at`

// ListRuns returns the most recent runs, newest first. A non-empty suite
// restricts the list to that suite. limit <= 0 returns every run.
//
// Returns an empty slice (not nil) if no runs are stored.
func (s *Store) ListRuns(ctx context.Context, suite string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if suite != "" {
		query += ` WHERE suite = ?`
		args = append(args, suite)
	}
	query += ` ORDER BY seq DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run summary by id.
// Returns ErrRunNotFound if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ReadReport returns the canonical JSON report stored for a run.
// Returns ErrRunNotFound if not found.
func (s *Store) ReadReport(ctx context.Context, id string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return []byte(data), nil
}

// ReadCases returns the cases of a run ordered by index.
// Returns an empty slice (not nil) if the run has no cases.
func (s *Store) ReadCases(ctx context.Context, runID string) ([]harness.CaseResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, kind, code, expected, output, state, failure, exit_code, new_parts, missing_parts, error
		FROM cases
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	cases := []harness.CaseResult{}
	for rows.Next() {
		var (
			c                    harness.CaseResult
			kind, state, failure string
		)
		if err := rows.Scan(
			&c.Index, &kind, &c.Code, &c.Expected, &c.Output, &state, &failure,
			&c.ExitCode, &c.NewParts, &c.MissingParts, &c.Error,
		); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		c.Kind = harness.Kind(kind)
		c.State = harness.State(state)
		c.Failure = harness.FailureKind(failure)
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run  Run
		pass int
	)
	err := row.Scan(
		&run.Seq, &run.ID, &run.Command, &run.Suite, &run.Library, &pass,
		&run.Passed, &run.Failed, &run.Skipped, &run.Digest, &run.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Pass = pass != 0
	return run, nil
}
