package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every check matched its expectation.
	Pass bool `json:"pass"`

	// Trace has one line per executed step, preceded by two header lines.
	// Compared against golden files.
	Trace []string `json:"trace"`

	// Errors contains one message per failed check.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []string{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace line.
func (r *Result) AddTrace(line string) {
	r.Trace = append(r.Trace, line)
}
