package tasks

// Phase labels the stage a generation run is in.
type Phase string

const (
	PhaseFetching   Phase = "fetching"
	PhasePlanning   Phase = "planning"
	PhasePublishing Phase = "publishing"
	PhaseDone       Phase = "done"
)

// ProgressUpdate reports incremental progress of a generation run.
type ProgressUpdate struct {
	Phase     Phase  `json:"phase"`
	Message   string `json:"message"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// sendProgress delivers an update without blocking: slow consumers miss
// updates rather than stalling the run.
func sendProgress(ch chan<- ProgressUpdate, update ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
	}
}
