package topology

import (
	"context"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmountifield/vector/internal/event"
)

// inputBuffer is the channel capacity in front of every transform and sink.
const inputBuffer = 128

// input is the receiving end of a transform or sink. It stays open while
// anyone holds a reference: the topology holds one for as long as the
// consumer is part of the running generation and every upstream fanout holds
// one while attached. The channel closes when the last reference goes, which
// lets the consumer drain what is buffered and return.
type input struct {
	name string
	ch   chan event.Event

	mu     sync.Mutex
	refs   int
	closed bool
}

func newInput(name string) *input {
	return &input{name: name, ch: make(chan event.Event, inputBuffer), refs: 1}
}

func (i *input) acquire() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return false
	}
	i.refs++
	return true
}

func (i *input) release() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return
	}
	i.refs--
	if i.refs == 0 {
		i.closed = true
		close(i.ch)
	}
}

// fanout delivers the output of one source or transform to every attached
// input. Attach, detach and replace are atomic with respect to Emit: an event
// is delivered either to the old set of targets or to the new one.
type fanout struct {
	name    string
	counter prometheus.Counter

	mu      sync.Mutex
	targets map[string]*input
	closed  bool
}

func newFanout(name string, counter prometheus.Counter) *fanout {
	return &fanout{name: name, counter: counter, targets: make(map[string]*input)}
}

// Emit sends ev to every target, cloning it for all but the last. It blocks
// while a target's buffer is full.
func (f *fanout) Emit(ctx context.Context, ev event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.targets) == 0 {
		return nil
	}

	names := f.sortedTargets()
	for idx, name := range names {
		out := ev
		if idx < len(names)-1 {
			out = ev.Clone()
		}
		select {
		case f.targets[name].ch <- out:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if f.counter != nil {
		f.counter.Inc()
	}
	return nil
}

// set points the named target at in, releasing whatever input it pointed at
// before. Setting the same input again is a no-op.
func (f *fanout) set(name string, in *input) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	old, exists := f.targets[name]
	if exists && old == in {
		return
	}
	if !in.acquire() {
		return
	}
	f.targets[name] = in
	if exists {
		old.release()
	}
}

func (f *fanout) detach(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if old, ok := f.targets[name]; ok {
		delete(f.targets, name)
		old.release()
	}
}

func (f *fanout) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.targets[name]
	return ok
}

func (f *fanout) targetNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedTargets()
}

// close releases every target. The owning component calls it on exit.
func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for name, in := range f.targets {
		delete(f.targets, name)
		in.release()
	}
}

func (f *fanout) sortedTargets() []string {
	names := make([]string, 0, len(f.targets))
	for name := range f.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
