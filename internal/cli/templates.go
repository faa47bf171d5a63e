package cli

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/datamock/internal/template"
)

var errEmptyToken = errors.New("type token is empty")

// ScoreInfo is one template score in match output.
type ScoreInfo struct {
	Template string  `json:"template"`
	Score    float64 `json:"score"`
}

// NewTemplatesCommand creates the templates command.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List registered entity templates",
		Long: `List the built-in entity templates in registration order. Matching
ties resolve to the earlier template.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			names := template.Default().Names()

			if f.JSON() {
				return f.Success(map[string]interface{}{"templates": names})
			}
			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{strconv.Itoa(i + 1), name}
			}
			return f.Table([]string{"#", "Template"}, rows)
		},
	}
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <token|title>",
		Short: "Score a type token against every template",
		Long: `Show the Jaccard similarity of a type token to every template, best
first. A dotted title is reduced to its last segment.

Examples:
  datamock match fato_exame
  datamock match project.ds_prod.fato_exame_lab --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			token := args[0]
			if i := strings.LastIndex(token, "."); i >= 0 {
				token = token[i+1:]
			}
			if token == "" {
				return f.fail(ExitCommandError, CodeInput, "invalid token", errEmptyToken)
			}

			reg := template.Default()
			best, err := reg.Match(token)
			if err != nil {
				return f.fail(ExitCommandError, CodeInput, "match failed", err)
			}

			scores := reg.Scores(token)
			infos := make([]ScoreInfo, len(scores))
			for i, s := range scores {
				infos[i] = ScoreInfo{Template: s.Name, Score: s.Score}
			}

			if f.JSON() {
				return f.Success(map[string]interface{}{
					"token":  token,
					"match":  best.Template.Name,
					"scores": infos,
				})
			}
			rows := make([][]string, len(infos))
			for i, info := range infos {
				mark := ""
				if info.Template == best.Template.Name {
					mark = "*"
				}
				rows[i] = []string{info.Template, strconv.FormatFloat(info.Score, 'f', 3, 64), mark}
			}
			return f.Table([]string{"Template", "Score", "Match"}, rows)
		},
	}
}
