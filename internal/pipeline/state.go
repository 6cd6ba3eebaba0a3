package pipeline

import "fmt"

// State is the lifecycle state of a Controller.
type State int

const (
	StateLoaded State = iota
	StateParametersResolved
	StateRunIdentityBound
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "Loaded"
	case StateParametersResolved:
		return "ParametersResolved"
	case StateRunIdentityBound:
		return "RunIdentityBound"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ResumePolicy decides what happens to tasks already recorded as completed
// in the checkpoint of a resumed run.
type ResumePolicy int

const (
	// RerunAll runs every task again; completions are still recorded.
	RerunAll ResumePolicy = iota
	// SkipCompleted skips tasks whose hash is already recorded.
	SkipCompleted
)

func (p ResumePolicy) String() string {
	if p == SkipCompleted {
		return "skip-completed"
	}
	return "rerun-all"
}
