package store

import (
	"context"
	"fmt"

	"github.com/roach88/scadunit/internal/harness"
	"github.com/roach88/scadunit/internal/report"
)

// RecordRun inserts a finished run and its cases in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a run id that is already
// stored is silently ignored together with its cases.
//
// The run's report is serialized to canonical JSON per RFC 8785 and stored
// with its digest.
func (s *Store) RecordRun(ctx context.Context, r *harness.Result) error {
	data, err := report.Marshal(r)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	passed, failed, skipped := r.Counts()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, command, suite, library, pass, passed, failed, skipped, report, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.RunID,
		r.Command,
		r.Suite,
		r.Library,
		boolToInt(r.Pass),
		passed,
		failed,
		skipped,
		string(data),
		report.Digest(data),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for i := range r.Cases {
		c := &r.Cases[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cases
			(run_id, idx, kind, code, expected, output, state, failure, exit_code, new_parts, missing_parts, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.RunID,
			c.Index,
			string(c.Kind),
			c.Code,
			c.Expected,
			c.Output,
			string(c.State),
			string(c.Failure),
			c.ExitCode,
			c.NewParts,
			c.MissingParts,
			c.Error,
		)
		if err != nil {
			return fmt.Errorf("record run: case %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
