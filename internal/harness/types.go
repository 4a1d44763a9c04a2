package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step behaved as expected and
	// every assertion held.
	Pass bool

	// Trace contains one event per step, in order. Events hold only
	// canonical-JSON types so the trace can be golden-compared.
	Trace []any

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string

	// State holds the final balances and orders per declared account.
	State map[string]any
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []any{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event to the trace.
func (r *Result) AddTrace(event map[string]any) {
	r.Trace = append(r.Trace, event)
}
