// Package signals turns operating system signals into control events for the
// supervisor.
package signals

import (
	"os"
	"os/signal"
	"sync"
)

// Kind is a control event understood by the supervisor.
type Kind int

const (
	Reload Kind = iota + 1
	Interrupt
	Terminate
	QuitNow
)

func (k Kind) String() string {
	switch k {
	case Reload:
		return "reload"
	case Interrupt:
		return "interrupt"
	case Terminate:
		return "terminate"
	case QuitNow:
		return "quit"
	default:
		return "unknown"
	}
}

// Source delivers control events until stopped.
type Source interface {
	Events() <-chan Kind
	Stop()
}

type osSource struct {
	sigs   chan os.Signal
	events chan Kind
	done   chan struct{}
	once   sync.Once
}

// Notify subscribes to the signals the platform supports and returns them as
// control events. Signals that arrive while nobody reads are queued.
func Notify() Source {
	s := &osSource{
		sigs:   make(chan os.Signal, 8),
		events: make(chan Kind, 8),
		done:   make(chan struct{}),
	}
	signal.Notify(s.sigs, notified...)
	go s.loop()
	return s
}

func (s *osSource) loop() {
	for {
		select {
		case sig := <-s.sigs:
			kind, ok := translate(sig)
			if !ok {
				continue
			}
			select {
			case s.events <- kind:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *osSource) Events() <-chan Kind {
	return s.events
}

func (s *osSource) Stop() {
	s.once.Do(func() {
		signal.Stop(s.sigs)
		close(s.done)
	})
}
