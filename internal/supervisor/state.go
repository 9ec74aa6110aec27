package supervisor

// State is the lifecycle state of one supervised worker.
type State string

const (
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateCrashed    State = "crashed"
	StateRestarting State = "restarting"
	StateStopped    State = "stopped"
)

// ValidTransitions defines the allowed state transitions. Stopped is
// terminal; a crashed worker always moves through Restarting, never straight
// back to Running.
var ValidTransitions = map[State][]State{
	StateStarting:   {StateRunning, StateStopped},
	StateRunning:    {StateCrashed, StateStopped},
	StateCrashed:    {StateRestarting, StateStopped},
	StateRestarting: {StateRunning, StateStopped},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range ValidTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
