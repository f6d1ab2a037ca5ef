// Package store provides SQLite-backed durable storage for harness runs.
//
// The store keeps an append-only history with:
//   - Runs: one row per finished test or render run, with its canonical report
//   - Cases: one row per case of a run
//
// # Ordering
//
// Runs are ordered by seq, an autoincrement logical clock. The recorded_at
// column is informational and never used for ordering. Cases are ordered by
// their index within the run.
//
// # Idempotency
//
// Recording a run id that already exists is a no-op, so recording the same
// result twice leaves a single row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Reports are serialized by internal/report as RFC 8785 canonical JSON; the
// stored digest is computed over those exact bytes.
package store
