// Package dashboard implements the HealthyCity dashboard: a server-rendered
// UI that submits one synchronous gateway request per form submission and
// renders metrics, a map pin, or an error banner.
//
// Rendering is a pure function of a ViewState value produced by Reduce; the
// handlers never mutate view data in place.
package dashboard

import "github.com/healthycity/healthycity/internal/analysis"

// Phase is the dashboard lifecycle phase.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseDisplaying Phase = "displaying"
	PhaseFailed     Phase = "failed"
)

// Metric is one rendered metric row.
type Metric struct {
	Label string
	Value string
}

// Result is a decoded gateway response, shaped for rendering.
type Result struct {
	Kind       analysis.Kind
	City       string
	Lat        float64
	Lon        float64
	DataSource string
	Metrics    []Metric
}

// ViewState is the complete, immutable state behind one rendered page.
type ViewState struct {
	Phase        Phase
	City         string
	Kind         analysis.Kind
	Result       *Result
	ErrorMessage string
}

// Event is a dashboard state transition trigger.
type Event interface {
	isEvent()
}

// Submit starts a new analysis. It clears any prior result and error.
type Submit struct {
	City string
	Kind analysis.Kind
}

// Success completes a fetch with a result.
type Success struct {
	Result *Result
}

// Failure completes a fetch with a banner message.
type Failure struct {
	Message string
}

func (Submit) isEvent()  {}
func (Success) isEvent() {}
func (Failure) isEvent() {}

// Reduce returns the next ViewState for an event. It is pure: the input state
// is never modified.
func Reduce(st ViewState, ev Event) ViewState {
	switch e := ev.(type) {
	case Submit:
		// A new submission discards everything from the previous round trip.
		return ViewState{
			Phase: PhaseFetching,
			City:  e.City,
			Kind:  e.Kind,
		}
	case Success:
		st.Phase = PhaseDisplaying
		st.Result = e.Result
		st.ErrorMessage = ""
		return st
	case Failure:
		st.Phase = PhaseFailed
		st.Result = nil
		st.ErrorMessage = e.Message
		return st
	default:
		return st
	}
}
