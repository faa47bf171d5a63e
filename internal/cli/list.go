package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/datamock/internal/testcase"
)

// CaseInfo describes one test case in list output.
type CaseInfo struct {
	ID        string   `json:"id"`
	Desc      string   `json:"desc"`
	Tags      []string `json:"tags"`
	Events    int      `json:"events"`
	Unittests int      `json:"unittests"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <suite-dir>",
		Short: "List the test cases of a suite",
		Long: `List test case ids with their documentation.

Examples:
  datamock list ./suites/lab
  datamock list ./suites/lab --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			suite, err := testcase.LoadSuite(args[0])
			if err != nil {
				return f.fail(ExitCommandError, CodeLoad, "failed to load suite", err)
			}

			infos := make([]CaseInfo, len(suite.Cases))
			for i, tc := range suite.Cases {
				doc := tc.Doc()
				tags := doc.Tags
				if tags == nil {
					tags = []string{}
				}
				infos[i] = CaseInfo{
					ID:        tc.ID,
					Desc:      doc.Desc,
					Tags:      tags,
					Events:    len(tc.Events),
					Unittests: len(tc.Unittests),
				}
			}

			if f.JSON() {
				return f.Success(infos)
			}
			rows := make([][]string, len(infos))
			for i, info := range infos {
				rows[i] = []string{
					info.ID,
					info.Desc,
					strings.Join(info.Tags, ", "),
					strconv.Itoa(info.Events),
					strconv.Itoa(info.Unittests),
				}
			}
			return f.Table([]string{"Case", "Description", "Tags", "Events", "Unittests"}, rows)
		},
	}
}
