package advisor

import (
	"context"
	"fmt"
	"log/slog"
)

// State is a step of the answer pipeline.
type State int

const (
	StateIdle State = iota
	StateRetrieving
	StateScoring
	StateAssembling
	StateGenerating
	StatePostProcessing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateRetrieving:     "retrieving",
	StateScoring:        "scoring",
	StateAssembling:     "assembling",
	StateGenerating:     "generating",
	StatePostProcessing: "post_processing",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// transitions lists the allowed successors of each state. Failed is
// reachable from every non-terminal state and is added in allowed.
// Retrieving may skip Scoring when retrieval is unavailable.
var transitions = map[State][]State{
	StateIdle:           {StateRetrieving},
	StateRetrieving:     {StateScoring, StateAssembling},
	StateScoring:        {StateAssembling},
	StateAssembling:     {StateGenerating},
	StateGenerating:     {StatePostProcessing},
	StatePostProcessing: {StateDone},
}

func allowed(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks one request's path through the pipeline.
type machine struct {
	log  *slog.Logger
	path []State
}

func newMachine(log *slog.Logger) *machine {
	return &machine{log: log, path: []State{StateIdle}}
}

func (m *machine) current() State { return m.path[len(m.path)-1] }

// to moves to next. An illegal transition is a programming error and panics.
func (m *machine) to(ctx context.Context, next State) {
	from := m.current()
	if !allowed(from, next) {
		panic(fmt.Sprintf("advisor: illegal transition %s -> %s", from, next))
	}
	m.path = append(m.path, next)
	m.log.DebugContext(ctx, "state transition",
		slog.String("from", from.String()),
		slog.String("to", next.String()),
	)
}

// fail moves to Failed unless the machine already finished.
func (m *machine) fail(ctx context.Context) {
	if !m.current().Terminal() {
		m.to(ctx, StateFailed)
	}
}

func (m *machine) states() []State {
	out := make([]State, len(m.path))
	copy(out, m.path)
	return out
}
