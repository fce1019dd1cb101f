package domain

// ToolCreateCalendarReminder is the tool name of the first-class reminder handler.
const ToolCreateCalendarReminder = "create-calendar-reminder"

// ExtractedItem is a single action the model asked for.
// ToolName is never empty once an item has passed the parser.
type ExtractedItem struct {
	ToolName   string         `json:"tool_name" yaml:"tool_name" mapstructure:"tool_name"`
	Parameters map[string]any `json:"parameters" yaml:"parameters" mapstructure:"parameters"`
}

// Completion is the structured payload recovered from a model response.
// Items keep the order in which the model emitted them.
type Completion struct {
	Summary string          `json:"summary,omitempty"`
	Items   []ExtractedItem `json:"function_calls"`
}

// OutcomeStatus is the per-item result of dispatch.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded" // Handler ran without error
	OutcomeSkipped   OutcomeStatus = "skipped"   // No handler registered for the tool
	OutcomeFailed    OutcomeStatus = "failed"    // Handler returned an error or never ran
)

// ItemOutcome records what happened to one ExtractedItem.
type ItemOutcome struct {
	Item   ExtractedItem `json:"item"`
	Status OutcomeStatus `json:"status"`
	Detail string        `json:"detail,omitempty"`
}
