package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bake/internal/config"
	"github.com/roach88/bake/internal/generator"
	"github.com/roach88/bake/internal/journal"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Tag      string
	Journal  string
	DryRun   bool
	KeepWork bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Evaluate designated members and write their values",
		Long: `Run a bake pass over the given packages (default ".").

The packages are type-checked with the bake tag, every //bake:eval member
is invoked once, and each value is written to bake_<Name>_gen.go next to
its declaration. Nothing is written when the pass hits a fatal error.

Exit codes:
  0 - pass completed
  1 - some members reported errors; the others were generated
  2 - fatal error, nothing written

Examples:
  bake generate ./...
  bake generate --dry-run ./internal/tables
  bake generate --journal .bake/journal.db ./...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tag, "tag", "", "feature build tag (overrides config)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record the pass in this SQLite journal")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print generated files instead of writing them")
	cmd.Flags().BoolVar(&opts.KeepWork, "keep-work", false, "keep the work directory for inspection")

	return cmd
}

// apply overrides cfg with the flags set on cmd.
func (o *GenerateOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("tag") {
		cfg.Tag = o.Tag
	}
	if flags.Changed("journal") {
		cfg.Journal = o.Journal
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = o.DryRun
	}
	if flags.Changed("keep-work") {
		cfg.KeepWork = o.KeepWork
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	return nil
}

func runGenerate(opts *GenerateOptions, patterns []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	genOpts := []generator.Option{
		generator.WithLogger(opts.logger(cmd.ErrOrStderr())),
		generator.WithSink(formatter.Sink()),
		generator.WithOutput(cmd.OutOrStdout()),
	}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening journal", err)
		}
		defer j.Close()
		genOpts = append(genOpts, generator.WithJournal(j))
	}

	g := generator.New(cfg, genOpts...)
	res, err := g.Run(cmd.Context(), patterns...)
	if err != nil {
		_ = formatter.Error(ErrCodeFatal, err.Error(), res)
		if errors.Is(err, generator.ErrFatal) {
			return WrapExitError(ExitCommandError, "pass aborted", err)
		}
		return WrapExitError(ExitCommandError, "pass failed", err)
	}

	if n := res.Errors(); n > 0 {
		msg := fmt.Sprintf("%d member error(s)", n)
		_ = formatter.Error(ErrCodeMembers, msg, res)
		if formatter.Format != "json" {
			printSummary(formatter, res)
		}
		return NewExitError(ExitFailure, msg)
	}
	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	if !cfg.DryRun {
		printSummary(formatter, res)
	}
	return nil
}

// printSummary writes the text form of a pass result.
func printSummary(f *OutputFormatter, res *generator.Result) {
	counts := map[generator.Status]int{}
	for _, o := range res.Outcomes {
		counts[o.Status]++
	}
	mark := "✓"
	if res.Errors() > 0 {
		mark = "✗"
	}
	fmt.Fprintf(f.Writer, "%s %d member(s): %d generated, %d void, %d skipped, %d failed\n",
		mark, len(res.Outcomes),
		counts[generator.StatusGenerated],
		counts[generator.StatusVoid],
		counts[generator.StatusSkipped],
		counts[generator.StatusFailed],
	)
	for _, path := range res.Written {
		fmt.Fprintf(f.Writer, "  wrote %s\n", path)
	}
	for _, path := range res.Removed {
		fmt.Fprintf(f.Writer, "  removed %s\n", path)
	}
	if len(res.Unchanged) > 0 {
		f.VerboseLog("%d file(s) unchanged", len(res.Unchanged))
	}
	if res.PassID != "" {
		fmt.Fprintf(f.Writer, "  pass %s\n", res.PassID)
	}
}
