// Package runtime owns every goroutine the pipeline spawns so that the whole
// process can be torn down with a bounded wait.
package runtime

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/jmountifield/vector/internal/logger"
)

// ErrShutdown is the result of tasks spawned after ShutdownNow.
var ErrShutdown = errors.New("runtime is shut down")

// DefaultThreads is the worker count used when none is configured.
func DefaultThreads() int {
	return max(1, goruntime.NumCPU())
}

// Runtime tracks spawned tasks and applies the configured parallelism.
type Runtime struct {
	threads int
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	wg     sync.WaitGroup
	tasks  map[uint64]*Handle
	nextID uint64
	closed bool
}

// New creates a runtime sized for threads workers.
func New(threads int, log *logger.Logger) (*Runtime, error) {
	if threads < 1 {
		return nil, fmt.Errorf("the threads argument must be greater or equal to 1, got %d", threads)
	}
	goruntime.GOMAXPROCS(threads)

	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		threads: threads,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[uint64]*Handle),
	}, nil
}

// Threads reports the configured parallelism.
func (r *Runtime) Threads() int {
	return r.threads
}

// Context is cancelled when the runtime is shut down.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Spawn runs fn on its own goroutine. A panic inside fn is recovered and
// reported through the handle instead of crashing the process.
func (r *Runtime) Spawn(name string, fn func(ctx context.Context) error) *Handle {
	return r.SpawnWithContext(r.ctx, name, fn)
}

// SpawnWithContext is Spawn with a caller-supplied parent context. The task
// context is also cancelled by ShutdownNow.
func (r *Runtime) SpawnWithContext(parent context.Context, name string, fn func(ctx context.Context) error) *Handle {
	h := &Handle{name: name, done: make(chan struct{})}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.result = Result{Err: ErrShutdown}
		h.cancel = func() {}
		close(h.done)
		return h
	}
	id := r.nextID
	r.nextID++
	r.tasks[id] = h
	r.wg.Add(1)
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(r.ctx, cancel)
	h.cancel = cancel

	go func() {
		defer func() {
			stop()
			cancel()
			r.mu.Lock()
			delete(r.tasks, id)
			r.mu.Unlock()
			close(h.done)
			r.wg.Done()
		}()

		h.result = run(ctx, fn)
		if h.result.Panic != nil {
			r.log.WithFields(map[string]any{"task": name, "panic": fmt.Sprint(h.result.Panic)}).
				Error(h.result.Err, "Task panicked.")
		}
	}()

	return h
}

func run(ctx context.Context, fn func(ctx context.Context) error) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{
				Err:   fmt.Errorf("panic: %v", p),
				Panic: p,
				Stack: debug.Stack(),
			}
		}
	}()

	err := fn(ctx)
	return Result{Err: err, Cancelled: err != nil && errors.Is(err, context.Canceled)}
}

// Active lists the names of tasks still running, sorted.
func (r *Runtime) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.tasks))
	for _, h := range r.tasks {
		names = append(names, h.name)
	}
	sort.Strings(names)
	return names
}

// ShutdownNow cancels every task and waits up to timeout for them to return.
// It reports whether all tasks finished in time.
func (r *Runtime) ShutdownNow(timeout time.Duration) bool {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		r.log.WithFields(map[string]any{"tasks": r.Active()}).Warn("Tasks did not stop before the shutdown deadline.")
		return false
	}
}
