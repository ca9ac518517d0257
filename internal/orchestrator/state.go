package orchestrator

import "fmt"

// State is the lifecycle position of a submitted operation.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// allowedTransitions is the complete set of legal state changes.
var allowedTransitions = map[State][]State{
	StateQueued:  {StateRunning, StateFailed},
	StateRunning: {StateSucceeded, StateFailed},
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

func validateTransition(from, to State) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("orchestrator: invalid transition %s -> %s", from, to)
}
