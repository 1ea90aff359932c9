// Package engine implements the cooperative run queue behind deferred work.
//
// ARCHITECTURE:
//
// Single-Writer Run Loop:
// Deferred tasks (today: debounced persistence writes) are appended to a FIFO
// queue and executed one at a time, either by Run on a dedicated goroutine or
// by Drain on the caller's goroutine. A task never runs synchronously with
// the mutation that scheduled it; it runs on a later "tick".
//
// Task Processing Flow:
//  1. Schedule() appends a named task
//  2. Run() or Drain() dequeues tasks in FIFO order
//  3. runTask() executes the task; errors and panics are logged
//  4. Tasks enqueued while draining run in the same Drain call
//
// There is no cancellation: once scheduled a task runs unless the loop is
// stopped first. Use either Run or Drain on a given Loop, never both.
//
// Clock hands out monotonic tokens; IDGenerator hands out session IDs.
package engine
