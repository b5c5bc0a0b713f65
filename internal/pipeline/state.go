package pipeline

// State is the stage a job has reached
type State int

const (
	StatePending State = iota
	StateEncoding
	StateCacheCheck
	StateUploading
	StatePatching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateEncoding:
		return "ENCODING"
	case StateCacheCheck:
		return "CACHE_CHECK"
	case StateUploading:
		return "UPLOADING"
	case StatePatching:
		return "PATCHING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions follow s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is reported to an Observer every time a job changes state
type Transition struct {
	JobID string
	Name  string
	State State
	// Err is set on StateFailed
	Err error
}

// Observer receives job transitions. It is called from job goroutines and
// must be safe for concurrent use.
type Observer func(t Transition)
