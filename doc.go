// Package queuectl is a durable, local command-execution queue: a
// control-plane surface backed by SQLite, and a pool of background workers
// that claim jobs, execute them as shell commands, and retry or dead-letter
// them on failure.
//
// # Overview
//
// Users enqueue shell commands through the control surface. Workers claim
// jobs atomically from the shared store, run them as subprocesses, and
// either complete them, retry them with exponential backoff, or move them
// to a dead-letter queue (DLQ) after exhausting retries. State is durable
// and survives process restarts; only the persistent store is shared
// mutable state.
//
// # State Machine
//
// Jobs follow this lifecycle:
//
//	(none)     -> Pending     (enqueue)
//	Pending    -> Processing  (claim)
//	Processing -> Completed   (execute succeeded)
//	Processing -> Pending     (execute failed, retries remain; attempts++)
//	Processing -> Dead        (execute failed, retries exhausted)
//	Dead       -> Pending     (explicit DLQ retry; attempts reset to 0)
//
// Terminal states (Completed, Dead) are reached only from Processing.
//
// # Claim Protocol
//
// Dispatcher.ClaimNext is the sole correctness guarantee against duplicate
// execution: it selects the oldest eligible Pending job and transitions it
// to Processing inside a single predicate-guarded UPDATE. At most one
// worker ever observes a given job in Processing at any instant.
//
// # Retry Policy
//
// On execution failure, the worker computes next_attempts = attempts + 1.
// If next_attempts >= max_retries, the job is killed (Dead). Otherwise the
// worker sleeps for base^next_attempts seconds — keeping the row in
// Processing, so no other worker can reclaim it — then returns it to
// Pending with attempts = next_attempts.
//
// # Worker Lifecycle
//
// Each Worker is cooperative: it checks a shared stop flag between claims,
// never mid-execution. A worker currently executing a command (including
// any post-failure backoff sleep) finishes that attempt before exiting.
// Liveness is tracked by heartbeats written to the registry at loop
// boundaries; a worker that crashes ages out of the active count once its
// heartbeat goes stale.
//
// # Interfaces
//
// The Store interface is the persistent-store contract: durable tables for
// jobs, workers, events and configuration, with atomic transactions and a
// row-level compare-and-swap primitive. Dispatcher, the Control Surface,
// and Registry are all thin wrappers over Store.
//
// # Non-goals
//
// No distributed coordination across hosts, no priority scheduling or
// fair-share, no sandboxing of executed commands, no cron/scheduled-time
// dispatch, no streaming of subprocess output, no per-job timeout.
package queuectl
