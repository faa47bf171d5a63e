package cli

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/datamock/internal/harness"
	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/mocker"
	"github.com/roach88/datamock/internal/testcase"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Case string
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <suite-dir>",
		Short: "Build one test case into datasets",
		Long: `Build one test case of a suite and print the generated datasets.

The sink database is not touched. --case may be omitted when the suite
holds a single case.

Examples:
  datamock build ./suites/lab --case tc_001
  datamock build ./suites/lab --case tc_001 --seed 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Case, "case", "c", "", "test case id")

	return cmd
}

func runBuild(opts *BuildOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	h, suite, err := harness.Load(dir, append(opts.harnessOptions(), harness.WithDatabase(":memory:"))...)
	if err != nil {
		return f.fail(ExitCommandError, CodeLoad, "failed to load suite", err)
	}
	defer h.Close()

	tc, err := pickCase(suite, opts.Case)
	if err != nil {
		return f.fail(ExitCommandError, CodeInput, "no test case selected", err)
	}

	res, err := h.Build(suite.Name, tc)
	if err != nil {
		return f.fail(ExitCommandError, CodeBuild, "build failed", err)
	}

	if f.JSON() {
		return f.Success(buildView(res))
	}
	return outputBuildText(f, res)
}

// pickCase returns the case named id, or the only case when id is empty.
func pickCase(suite *testcase.Suite, id string) (*testcase.Case, error) {
	if id != "" {
		return suite.Case(id)
	}
	if len(suite.Cases) == 1 {
		return suite.Cases[0], nil
	}
	return nil, errors.WithHint(
		errors.Newf("suite %s has %d cases", suite.Name, len(suite.Cases)),
		"pick one with --case: "+strings.Join(suite.IDs(), ", "),
	)
}

func buildView(res *mocker.Result) map[string]interface{} {
	return map[string]interface{}{
		"build_id":   res.BuildID,
		"suite":      res.Suite,
		"testcase":   res.Testcase,
		"person_key": res.PersonKey,
		"base_date":  res.BaseDate,
		"last_date":  res.LastDate,
		"order":      res.Order,
		"keys":       res.Keys,
		"datasets":   ir.ToAny(res.Value()),
	}
}

func outputBuildText(f *OutputFormatter, res *mocker.Result) error {
	fmt.Fprintf(f.Writer, "Build %s of %s/%s\n", res.BuildID, res.Suite, res.Testcase)
	fmt.Fprintf(f.Writer, "  person %s, base %s, last %s\n", res.PersonKey, res.BaseDate, res.LastDate)

	for _, token := range res.Order {
		d := res.Datasets[token]
		fmt.Fprintf(f.Writer, "\n%s (%d rows)\n", token, d.Len())

		header := d.ColumnNames()
		rows := make([][]string, len(d.Rows))
		for i, row := range d.Rows {
			cells := make([]string, len(header))
			for j, name := range header {
				cells[j] = ir.Text(row.Get(name))
			}
			rows[i] = cells
		}
		if err := f.Table(header, rows); err != nil {
			return err
		}
	}
	return nil
}
