package loop

// State is the scheduler's lifecycle phase.
type State int

const (
	StateInit State = iota
	StateRunning
	StateTerminating
	StateFailed
	StateExited
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateTerminating:
		return "TERMINATING"
	case StateFailed:
		return "FAILED"
	case StateExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
)
