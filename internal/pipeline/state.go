package pipeline

import (
	"sync"
	"time"
)

// State is the phase of a pipeline run
type State int

const (
	StateReady State = iota
	StateRecording
	StateProcessing
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run is over.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// Transition describes one state change
type Transition struct {
	RunID string
	From  State
	To    State
	At    time.Time
	Err   error // set when To is StateError
}

// Listener observes state changes. Listeners run synchronously on the
// pipeline goroutine and must not block.
type Listener func(Transition)

// stateMachine enforces forward-only transitions within a run
type stateMachine struct {
	mu        sync.RWMutex
	current   State
	runID     string
	listeners []Listener
}

func (sm *stateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *stateMachine) subscribe(l Listener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, l)
}

// reset starts a new run in StateReady.
func (sm *stateMachine) reset(runID string) {
	sm.mu.Lock()
	from := sm.current
	sm.current = StateReady
	sm.runID = runID
	listeners := sm.listeners
	sm.mu.Unlock()

	notify(listeners, Transition{RunID: runID, From: from, To: StateReady, At: time.Now()})
}

// transition moves forward to next. Backward moves and moves out of a
// terminal state are refused.
func (sm *stateMachine) transition(next State, err error) bool {
	sm.mu.Lock()
	from := sm.current
	if !validTransition(from, next) {
		sm.mu.Unlock()
		return false
	}
	sm.current = next
	t := Transition{RunID: sm.runID, From: from, To: next, At: time.Now(), Err: err}
	listeners := sm.listeners
	sm.mu.Unlock()

	notify(listeners, t)
	return true
}

func validTransition(from, to State) bool {
	valid := map[State][]State{
		StateReady:      {StateRecording, StateProcessing, StateError},
		StateRecording:  {StateProcessing, StateError},
		StateProcessing: {StateDone, StateError},
	}
	for _, s := range valid[from] {
		if s == to {
			return true
		}
	}
	return false
}

func notify(listeners []Listener, t Transition) {
	for _, l := range listeners {
		l(t)
	}
}
