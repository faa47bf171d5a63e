package harness

import (
	"time"

	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/mocker"
	"github.com/roach88/datamock/internal/store"
)

// UnitOutcome is one evaluated unittest.
type UnitOutcome struct {
	Name      string
	Field     string
	Assertion Assertion
	Expected  ir.Value
	Obtained  ir.Value
	Passed    bool
	Message   string // failure description, empty when passed
}

// Result holds the outcome of running one test case.
type Result struct {
	Suite    string
	Testcase string
	BuildID  string
	Pass     bool

	// Build is nil when the case could not be built.
	Build *mocker.Result

	// Obtained holds the rows the unittests were evaluated against.
	Obtained []ir.Object
	Units    []UnitOutcome

	// Err is the build or sink error that stopped the case, if any.
	Err      error
	Errors   []string
	Duration time.Duration
}

// NewResult creates a passing result for the case.
func NewResult(suite, testcase, buildID string) *Result {
	return &Result{
		Suite:    suite,
		Testcase: testcase,
		BuildID:  buildID,
		Pass:     true,
		Obtained: []ir.Object{},
		Units:    []UnitOutcome{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// fail stops the case on err.
func (r *Result) fail(err error) {
	r.Err = err
	r.AddError(err.Error())
}

// AddUnit appends an evaluated unittest.
func (r *Result) AddUnit(u UnitOutcome) {
	r.Units = append(r.Units, u)
	if !u.Passed {
		r.AddError(u.Message)
	}
}

// Failed returns the unittests that did not pass.
func (r *Result) Failed() []UnitOutcome {
	var out []UnitOutcome
	for _, u := range r.Units {
		if !u.Passed {
			out = append(out, u)
		}
	}
	return out
}

// Status maps the result to a builds log status.
func (r *Result) Status() string {
	switch {
	case r.Err != nil:
		return store.StatusError
	case r.Pass:
		return store.StatusPassed
	default:
		return store.StatusFailed
	}
}
