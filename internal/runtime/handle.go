package runtime

import (
	"context"
	"errors"
)

// Result is the outcome of a spawned task.
type Result struct {
	Err error
	// Panic holds the recovered value when the task panicked.
	Panic any
	Stack []byte
	// Cancelled is set when the task returned because its context was cancelled.
	Cancelled bool
	// Incomplete is set by Wait when the caller stopped waiting first.
	Incomplete bool
	TimedOut   bool
}

// Panicked reports whether the task panicked.
func (r Result) Panicked() bool {
	return r.Panic != nil
}

// Handle is a reference to a spawned task.
type Handle struct {
	name   string
	done   chan struct{}
	result Result
	cancel context.CancelFunc
}

// Name returns the task name.
func (h *Handle) Name() string {
	return h.name
}

// Done is closed when the task returns.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the task outcome. Only valid after Done is closed.
func (h *Handle) Result() Result {
	<-h.done
	return h.result
}

// Cancel cancels the task's context.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the task returns or ctx ends. When ctx ends first the
// task keeps running and the result is marked Incomplete.
func (h *Handle) Wait(ctx context.Context) Result {
	select {
	case <-h.done:
		return h.result
	case <-ctx.Done():
		return Result{
			Err:        ctx.Err(),
			Incomplete: true,
			TimedOut:   errors.Is(ctx.Err(), context.DeadlineExceeded),
			Cancelled:  errors.Is(ctx.Err(), context.Canceled),
		}
	}
}
