// Package sql provides a bun-based SQLite storage implementation of
// queuectl.Store.
//
// # Overview
//
// The backend provides:
//
//   - durable persistence of jobs, workers, config and the event log
//   - atomic claim-next via a predicate-guarded UPDATE inside a
//     transaction
//   - idempotent schema management via embedded goose migrations
//
// # Concurrency Model
//
// ClaimNext is implemented as a single transaction: select the oldest
// pending row, then UPDATE ... WHERE state='pending' guarded by the same
// id. If the update affects zero rows, a concurrent claimer won the
// race and ClaimNext reports no job available rather than erroring.
// Every other write is a single INSERT, UPDATE or DELETE statement (the
// job-state UPDATEs are guarded by the expected current state); no
// additional locking is required.
//
// The claim transaction must take SQLite's write lock up front, not on
// the later UPDATE: under a DEFERRED transaction (sqlite's default) the
// initial SELECT only takes a read lock, and two concurrent claimers can
// each hold one and deadlock trying to upgrade it for their UPDATE —
// busy_timeout does not help, since that's a lock conflict between two
// open transactions, not a writer waiting its turn. Callers must open the
// database with _txlock=immediate in the DSN so every transaction on the
// connection is a BEGIN IMMEDIATE; see cmd/queuectl/main.go and this
// package's test helpers.
//
// SQLite users should enable WAL mode and a non-zero busy_timeout; the
// test helpers in this package configure both.
//
// # Schema
//
// Migrate (or MustMigrate) applies every embedded migration under
// migrations/ using goose. It is idempotent and safe to call on every
// process start.
//
// # Limitations
//
// This backend targets SQLite. Nothing here assumes a specific SQL
// dialect beyond what bun's sqlitedialect and goose's sqlite3 dialect
// already encode; porting to PostgreSQL would mean swapping both and
// revisiting the ON CONFLICT clauses, which are expressed in SQLite's
// upsert syntax.
package sql
