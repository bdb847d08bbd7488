package harness

// Trace event types.
const (
	TraceDelete    = "delete"    // a delete step started
	TraceComposite = "composite" // a reference field was handed to the composite manager
	TraceDeleted   = "deleted"   // an entity's rows were removed
)

// TraceEvent is one entry of a scenario's deletion trace.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Entity    string `json:"entity"`
	Field     string `json:"field,omitempty"`
	FlowToken string `json:"flow_token,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace contains delete events in causal order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
