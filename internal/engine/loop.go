package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// Loop is the cooperative single-writer run queue.
//
// Thread-safety model:
//   - Schedule(), Len(), Stop(): safe from any goroutine
//   - Run() / Drain(): one caller at a time; never mix the two
type Loop struct {
	queue *taskQueue
	seq   *Clock
}

// NewLoop creates an idle loop. Nothing runs until Run or Drain is called.
func NewLoop() *Loop {
	return &Loop{
		queue: newTaskQueue(),
		seq:   NewClock(),
	}
}

// Schedule appends a task to run on a later tick.
// Returns false if the loop has been stopped.
func (l *Loop) Schedule(name string, task Task) bool {
	if task == nil {
		return false
	}
	ok := l.queue.Enqueue(job{name: name, seq: l.seq.Next(), run: task})
	if !ok {
		slog.Warn("task rejected: loop stopped", "task", name)
	}
	return ok
}

// Drain runs every pending task on the caller's goroutine, including tasks
// scheduled while draining, and returns how many ran. It stops early if ctx
// is cancelled.
func (l *Loop) Drain(ctx context.Context) int {
	ran := 0
	for {
		if ctx.Err() != nil {
			return ran
		}
		j, ok := l.queue.TryDequeue()
		if !ok {
			return ran
		}
		l.runTask(ctx, j)
		ran++
	}
}

// Run executes tasks as they arrive until ctx is cancelled or Stop is
// called. Blocks; call it from exactly one goroutine.
//
// A failing task is logged and the loop continues.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("run loop starting")

	for {
		if j, ok := l.queue.TryDequeue(); ok {
			l.runTask(ctx, j)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("run loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			if l.queue.Closed() && l.queue.Len() == 0 {
				slog.Info("run loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop rejects further tasks and makes Run return once the queue is empty.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Len returns the number of tasks waiting to run.
func (l *Loop) Len() int {
	return l.queue.Len()
}

func (l *Loop) runTask(ctx context.Context, j job) {
	if err := safeRun(ctx, j.run); err != nil {
		slog.Error("task failed",
			"task", j.name,
			"seq", j.seq,
			"error", err,
		)
		return
	}
	slog.Debug("task completed", "task", j.name, "seq", j.seq)
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
