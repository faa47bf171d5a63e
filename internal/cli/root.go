package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/datamock/internal/config"
	"github.com/roach88/datamock/internal/harness"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Seed    int64  // overrides generator.seed when set
	Now     string // overrides generator.now when set

	seedSet bool
	now     time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the datamock CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "datamock",
		Short: "datamock - mock datasets from YAML test cases",
		Long: `Build mock entity datasets from YAML test suites and check
SQL artefacts against them.

A suite is a directory holding test.yaml (one entry per test case) and an
optional config.yaml describing the artefact query under test.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			now, err := config.ParseNow(opts.Now)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --now", err)
			}
			opts.now = now
			opts.seedSet = cmd.Flags().Changed("seed")

			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().Int64Var(&opts.Seed, "seed", 0, "generator seed (overrides generator.seed)")
	cmd.PersistentFlags().StringVar(&opts.Now, "now", "", "fixed current time for ** aliases, YYYY-MM-DD[ HH:MM:SS]")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewTemplatesCommand(opts))
	cmd.AddCommand(NewMatchCommand(opts))

	return cmd
}

// harnessOptions turns the global flags into harness overrides.
func (o *RootOptions) harnessOptions() []harness.Option {
	opts := []harness.Option{harness.WithLogger(slog.Default())}
	if o.seedSet {
		opts = append(opts, harness.WithSeed(o.Seed))
	}
	if !o.now.IsZero() {
		opts = append(opts, harness.WithNow(o.now))
	}
	return opts
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
