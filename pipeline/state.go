package pipeline

// State is a step in a request's lifecycle.
type State int

const (
	Received State = iota
	Authenticated
	Staged
	Normalized
	Dispatched
	Transcribed
	Formatted
	Cleaned
	Completed
	Failed
)

var stateNames = [...]string{
	Received:      "received",
	Authenticated: "authenticated",
	Staged:        "staged",
	Normalized:    "normalized",
	Dispatched:    "dispatched",
	Transcribed:   "transcribed",
	Formatted:     "formatted",
	Cleaned:       "cleaned",
	Completed:     "completed",
	Failed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends the request.
func (s State) Terminal() bool { return s == Completed || s == Failed }
