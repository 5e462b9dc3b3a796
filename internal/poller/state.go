package poller

// State is one of the four mutually exclusive presentation states derived
// from a status snapshot. It is recomputed on every poll tick, never stored.
type State int

const (
	// StateExtraction shows the single-stage document extraction view
	// (stage 1 running).
	StateExtraction State = iota + 1
	// StateProgress shows the multi-column progress view (stages 2-5).
	StateProgress
	// StateResults shows the results grid once the run has completed.
	StateResults
	// StateDetail shows a single selected result. Reachable only from
	// StateResults via explicit user selection.
	StateDetail
)

func (s State) String() string {
	switch s {
	case StateExtraction:
		return "extraction"
	case StateProgress:
		return "progress"
	case StateResults:
		return "results"
	case StateDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// Reduce maps a snapshot's (currentStage, status) pair plus the client's
// selection flag onto a presentation state. Pure function: same inputs, same
// state. Selection only matters once the run is complete - a selection made
// while stages are still running does not jump ahead of the progress view.
func Reduce(currentStage int, status string, hasSelection bool) State {
	if status == "completed" {
		if hasSelection {
			return StateDetail
		}
		return StateResults
	}
	if currentStage <= 1 {
		return StateExtraction
	}
	return StateProgress
}
