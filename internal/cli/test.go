package cli

import (
	"fmt"
	"path"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/roach88/datamock/internal/harness"
	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/testcase"
)

// CodeRun reports a harness failure outside any single case.
const CodeRun = "E004"

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Cases  []string // explicit case ids
	Filter string   // glob over case ids
	DB     string   // sink database, overrides environment.database
}

// UnitReport is one unittest outcome in JSON output.
type UnitReport struct {
	Name     string      `json:"name"`
	Passed   bool        `json:"passed"`
	Expected interface{} `json:"expected"`
	Obtained interface{} `json:"obtained"`
	Message  string      `json:"message,omitempty"`
}

// CaseReport is one test case outcome in JSON output.
type CaseReport struct {
	Testcase   string       `json:"testcase"`
	BuildID    string       `json:"build_id"`
	Status     string       `json:"status"`
	DurationMS int64        `json:"duration_ms"`
	Units      []UnitReport `json:"units"`
	Errors     []string     `json:"errors,omitempty"`
}

// TestSummary holds the overall test result.
type TestSummary struct {
	Suite  string       `json:"suite"`
	Cases  []CaseReport `json:"cases"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <suite-dir>",
		Short: "Run test cases through the harness",
		Long: `Build each test case, load the datasets into the sink, run the
artefact query from config.yaml and check the case unittests.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed or errored
  2 - Command error (missing suite, invalid config, etc.)

Examples:
  datamock test ./suites/lab
  datamock test ./suites/lab --case tc_001 --case tc_002
  datamock test ./suites/lab --filter "tc_00*" --db results.db
  datamock test ./suites/lab --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Cases, "case", "c", nil, "run only these case ids (repeatable)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter case ids by glob pattern")
	cmd.Flags().StringVar(&opts.DB, "db", "", "sink database path (default: environment.database)")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	hopts := opts.harnessOptions()
	if opts.DB != "" {
		hopts = append(hopts, harness.WithDatabase(opts.DB))
	}
	h, suite, err := harness.Load(dir, hopts...)
	if err != nil {
		return f.fail(ExitCommandError, CodeLoad, "failed to load suite", err)
	}
	defer h.Close()

	ids, err := selectCases(suite, opts.Cases, opts.Filter)
	if err != nil {
		return f.fail(ExitCommandError, CodeInput, "invalid case selection", err)
	}

	summary := TestSummary{Suite: suite.Name, Cases: []CaseReport{}}
	if len(ids) == 0 {
		if f.JSON() {
			return f.Success(summary)
		}
		fmt.Fprintln(f.Writer, "No test cases matched.")
		return nil
	}

	results, err := h.RunSuite(cmd.Context(), suite, ids...)
	if err != nil {
		return f.fail(ExitCommandError, CodeRun, "harness run failed", err)
	}

	for _, res := range results {
		summary.Cases = append(summary.Cases, caseReport(res))
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	summary.Total = len(results)

	if f.JSON() {
		if err := f.Success(summary); err != nil {
			return err
		}
	} else if err := outputTestText(f, summary, results); err != nil {
		return err
	}

	if summary.Failed > 0 {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%d of %d cases failed", summary.Failed, summary.Total),
			Reported: true,
		}
	}
	return nil
}

// selectCases returns the case ids to run, in suite order for the default
// selection and in flag order for explicit --case ids.
func selectCases(suite *testcase.Suite, cases []string, filter string) ([]string, error) {
	ids := suite.IDs()
	if len(cases) > 0 {
		for _, id := range cases {
			if _, err := suite.Case(id); err != nil {
				return nil, err
			}
		}
		ids = cases
	}
	if filter == "" {
		return ids, nil
	}

	var out []string
	for _, id := range ids {
		ok, err := path.Match(filter, id)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid filter pattern %q", filter)
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func caseReport(res *harness.Result) CaseReport {
	report := CaseReport{
		Testcase:   res.Testcase,
		BuildID:    res.BuildID,
		Status:     res.Status(),
		DurationMS: res.Duration.Milliseconds(),
		Units:      make([]UnitReport, len(res.Units)),
		Errors:     res.Errors,
	}
	for i, u := range res.Units {
		report.Units[i] = UnitReport{
			Name:     u.Name,
			Passed:   u.Passed,
			Expected: ir.ToAny(u.Expected),
			Obtained: ir.ToAny(u.Obtained),
			Message:  u.Message,
		}
	}
	return report
}

func outputTestText(f *OutputFormatter, summary TestSummary, results []*harness.Result) error {
	rows := make([][]string, len(summary.Cases))
	for i, c := range summary.Cases {
		passed := 0
		for _, u := range c.Units {
			if u.Passed {
				passed++
			}
		}
		rows[i] = []string{
			c.Testcase,
			c.Status,
			strconv.Itoa(passed) + "/" + strconv.Itoa(len(c.Units)),
			results[i].Duration.String(),
		}
	}
	if err := f.Table([]string{"Case", "Status", "Units", "Duration"}, rows); err != nil {
		return err
	}

	for _, res := range results {
		if res.Pass {
			continue
		}
		fmt.Fprintf(f.Writer, "\n%s (build %s)\n", res.Testcase, res.BuildID)
		if res.Err != nil {
			fmt.Fprintf(f.Writer, "  %v\n", res.Err)
			for _, hint := range errors.GetAllHints(res.Err) {
				fmt.Fprintf(f.Writer, "  hint: %s\n", hint)
			}
		}
		for _, u := range res.Failed() {
			fmt.Fprintf(f.Writer, "  %s\n", u.Message)
		}
	}

	fmt.Fprintln(f.Writer)
	if summary.Failed == 0 {
		fmt.Fprintln(f.Writer, pterm.Success.Sprintf("%d passed", summary.Passed))
	} else {
		fmt.Fprintln(f.Writer, pterm.Error.Sprintf("%d passed, %d failed", summary.Passed, summary.Failed))
	}
	return nil
}
