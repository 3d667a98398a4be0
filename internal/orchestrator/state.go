package orchestrator

// State is the lifecycle phase of one streaming run.
type State string

const (
	StateStarted        State = "started"
	StateStreaming      State = "streaming"
	StateRequiresAction State = "requires_action"
	StateSubmitting     State = "submitting"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// transitions lists the legal moves of the run lifecycle:
// STARTED -> STREAMING -> (REQUIRES_ACTION -> SUBMITTING -> STREAMING)* ->
// COMPLETED | FAILED.
var transitions = map[State][]State{
	StateStarted:        {StateStreaming, StateFailed},
	StateStreaming:      {StateRequiresAction, StateCompleted, StateFailed},
	StateRequiresAction: {StateSubmitting, StateFailed},
	StateSubmitting:     {StateStreaming, StateFailed},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
