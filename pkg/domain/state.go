package domain

import "time"

// RunState is the position of a run in the pipeline state machine.
type RunState string

const (
	StateIdle         RunState = "idle"
	StatePromptBuilt  RunState = "prompt_built"
	StateModelInvoked RunState = "model_invoked"
	StateParsed       RunState = "parsed"
	StateDispatched   RunState = "dispatched"
	StateCompleted    RunState = "completed" // Terminal
	StateFailed       RunState = "failed"    // Terminal
)

// Terminal reports whether no further transition can leave this state.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// RunResult is the terminal record of a run.
// It is created when the run ends and is not mutated afterwards.
type RunResult struct {
	RunID string
	State RunState

	// Summary is the model's one-paragraph summary of the input, when parsing succeeded.
	Summary string

	// Outcomes holds one entry per extracted item, in item order.
	// A run cancelled during dispatch keeps the outcomes recorded so far.
	Outcomes []ItemOutcome

	// Cause is the terminal error of a Failed run and nil otherwise.
	Cause error

	// Attempts is the number of model calls made.
	Attempts int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts tallies outcomes by status.
func (r *RunResult) Counts() map[OutcomeStatus]int {
	counts := map[OutcomeStatus]int{
		OutcomeSucceeded: 0,
		OutcomeSkipped:   0,
		OutcomeFailed:    0,
	}
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// RunRecord is the serializable form of a RunResult, used for history and transport.
type RunRecord struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	State      RunState      `json:"state" yaml:"state"`
	Input      string        `json:"input,omitempty" yaml:"input,omitempty"`
	Summary    string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Outcomes   []ItemOutcome `json:"outcomes" yaml:"outcomes"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts   int           `json:"attempts" yaml:"attempts"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
}

// NewRunRecord flattens a result into its serializable form.
func NewRunRecord(input RawInput, r *RunResult) *RunRecord {
	rec := &RunRecord{
		RunID:      r.RunID,
		State:      r.State,
		Input:      input.Text,
		Summary:    r.Summary,
		Outcomes:   r.Outcomes,
		Attempts:   r.Attempts,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if rec.Outcomes == nil {
		rec.Outcomes = []ItemOutcome{}
	}
	if r.Cause != nil {
		rec.ErrorKind = KindOf(r.Cause)
		rec.Error = r.Cause.Error()
	}
	return rec
}
