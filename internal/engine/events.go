package engine

import (
	"fmt"
	"time"
)

// Status is the kind of progress event.
type Status uint8

const (
	StatusStarted Status = iota + 1
	// StatusStage means a builder stage finished contributing.
	StatusStage
	StatusCompiled
	// StatusCached means the artifact came from the durable cache.
	StatusCached
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusStage:
		return "stage"
	case StatusCompiled:
		return "compiled"
	case StatusCached:
		return "cached"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Event reports build progress of one operation.
type Event struct {
	Operation string
	// Stage is set for StatusStage events.
	Stage   string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// Done reports whether ev ends a build.
func (ev Event) Done() bool {
	switch ev.Status {
	case StatusCompiled, StatusCached, StatusFailed:
		return true
	}
	return false
}

// ProgressSink receives build events. Publish may be called from several
// goroutines at once.
type ProgressSink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

type nopSink struct{}

func (nopSink) Publish(Event) {}
