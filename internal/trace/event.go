package trace

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	// KindHeartbeat is emitted regardless of level.
	KindHeartbeat
)

var kindNames = [...]string{"unknown", "begin", "end", "point", "heartbeat"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[0]
}

// Scope is the granularity of an event. Lower is coarser.
type Scope uint8

const (
	// ScopeEngine covers warm-up and CLI commands.
	ScopeEngine Scope = iota + 1
	// ScopeOperation covers building one operation.
	ScopeOperation
	// ScopeStage covers build phases and builder stages.
	ScopeStage
	ScopeFrame
)

var scopeNames = [...]string{"unknown", "engine", "operation", "stage", "frame"}

func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return scopeNames[0]
}

// Level controls how fine-grained the recorded events are.
type Level uint8

const (
	LevelOff Level = iota
	// LevelError records nothing live; a ring is still dumped on exit.
	LevelError
	LevelPhase
	LevelDetail
	LevelDebug
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a level name, in any case, to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// finest is the finest scope recorded at each level.
var finest = [...]Scope{LevelPhase: ScopeOperation, LevelDetail: ScopeStage, LevelDebug: ScopeFrame}

// ShouldEmit reports whether events of scope are recorded at l.
func (l Level) ShouldEmit(scope Scope) bool {
	if int(l) >= len(finest) {
		return false
	}
	return scope != 0 && scope <= finest[l]
}

// Event is one trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for root spans
	Name     string // e.g. "op:transfer", "resolve"
	Detail   string
	Extra    map[string]string
}
