package redaction

import "fmt"

// Phase is the coarse activity of a session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseDetecting
	PhaseExporting
	PhaseFailed
)

// String returns a string representation of the Phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseDetecting:
		return "detecting"
	case PhaseExporting:
		return "exporting"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseLoading, PhaseDetecting, PhaseExporting, PhaseFailed} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// State is the tagged session state. Page and Total are set while loading or
// detecting, Message only when failed.
type State struct {
	Phase   Phase  `json:"phase"`
	Page    int    `json:"page,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// Busy reports whether an operation is in flight
func (s State) Busy() bool {
	return s.Phase == PhaseLoading || s.Phase == PhaseDetecting || s.Phase == PhaseExporting
}

func (s State) String() string {
	switch s.Phase {
	case PhaseLoading, PhaseDetecting:
		return fmt.Sprintf("%s{page: %d, total: %d}", s.Phase, s.Page, s.Total)
	case PhaseFailed:
		return fmt.Sprintf("failed{%s}", s.Message)
	default:
		return s.Phase.String()
	}
}

func idleState() State { return State{Phase: PhaseIdle} }

func loadingState(page, total int) State {
	return State{Phase: PhaseLoading, Page: page, Total: total}
}

func detectingState(page, total int) State {
	return State{Phase: PhaseDetecting, Page: page, Total: total}
}

func failedState(err error) State {
	return State{Phase: PhaseFailed, Message: err.Error()}
}

// Status is what the surfaces show the user. Error and ErrorKind describe the
// last failure until an operation succeeds; LastRun is the summary of the most
// recent successful run on the loaded document.
type Status struct {
	State     State      `json:"state"`
	Text      string     `json:"text,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorKind ErrorKind  `json:"error_kind,omitempty"`
	Source    string     `json:"source,omitempty"`
	Pages     int        `json:"pages"`
	Marks     int        `json:"marks"`
	TextLayer bool       `json:"text_layer"`
	LastRun   *RunResult `json:"last_run,omitempty"`
}
