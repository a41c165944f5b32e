package avcapture

import "fmt"

// State is the lifecycle state of a Capture.
type State string

const (
	StateIdle        State = "idle"
	StateInitialized State = "initialized"
	StateRunning     State = "running"
	StateStopping    State = "stopping"
	StateStopped     State = "stopped"
)

// allowed lists the states each state may move to.
var allowed = map[State][]State{
	StateIdle:        {StateInitialized},
	StateInitialized: {StateRunning, StateStopping},
	StateRunning:     {StateStopping},
	StateStopping:    {StateStopped},
}

// Update updates current state, s, to next. If f fails to execute,
// s will stay unchanged. Otherwise, s will be updated to next
func (s *State) Update(next State, f func() error) error {
	ok := false
	for _, to := range allowed[*s] {
		if to == next {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, *s, next)
	}

	err := f()
	if err == nil {
		*s = next
	}
	return err
}
