package component

import (
	"encoding/json"
	stderrors "errors"
	"time"
)

// ShutdownResult is the outcome of shutting down one component.
type ShutdownResult struct {
	Name string `json:"name"`
	// StopErr is the stop hook failure from the stop phase. The component
	// was forced to Stopped regardless.
	StopErr error `json:"-"`
	// ShutdownErr is the shutdown hook failure, panics included.
	ShutdownErr error `json:"-"`
}

// Failed reports whether either hook failed.
func (r ShutdownResult) Failed() bool { return r.StopErr != nil || r.ShutdownErr != nil }

type shutdownResultJSON struct {
	Name          string `json:"name"`
	Failed        bool   `json:"failed"`
	StopError     string `json:"stop_error,omitempty"`
	ShutdownError string `json:"shutdown_error,omitempty"`
}

// MarshalJSON encodes the result with its failures as messages.
func (r ShutdownResult) MarshalJSON() ([]byte, error) {
	out := shutdownResultJSON{Name: r.Name, Failed: r.Failed()}
	if r.StopErr != nil {
		out.StopError = r.StopErr.Error()
	}
	if r.ShutdownErr != nil {
		out.ShutdownError = r.ShutdownErr.Error()
	}
	return json.Marshal(out)
}

// ShutdownReport collects per-component results of Registry.Shutdown.
type ShutdownReport struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Results    []ShutdownResult `json:"results"`

	index map[string]int
}

func newShutdownReport(id string) *ShutdownReport {
	return &ShutdownReport{ID: id, StartedAt: time.Now(), index: make(map[string]int)}
}

func (r *ShutdownReport) result(name string) *ShutdownResult {
	i, ok := r.index[name]
	if !ok {
		i = len(r.Results)
		r.index[name] = i
		r.Results = append(r.Results, ShutdownResult{Name: name})
	}
	return &r.Results[i]
}

// Result returns the outcome for name.
func (r *ShutdownReport) Result(name string) (ShutdownResult, bool) {
	i, ok := r.index[name]
	if !ok {
		return ShutdownResult{}, false
	}
	return r.Results[i], true
}

// Failed returns the results with at least one failed hook.
func (r *ShutdownReport) Failed() []ShutdownResult {
	var failed []ShutdownResult
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins every hook failure, or returns nil when shutdown was clean.
func (r *ShutdownReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.StopErr != nil {
			errs = append(errs, res.StopErr)
		}
		if res.ShutdownErr != nil {
			errs = append(errs, res.ShutdownErr)
		}
	}
	return stderrors.Join(errs...)
}

// Duration returns how long shutdown took.
func (r *ShutdownReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
