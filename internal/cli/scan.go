package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bake/internal/generator"
)

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [packages]",
		Short: "List designated members without invoking them",
		Long: `Type-check the given packages with the bake tag and list every
//bake:eval member with the static checks applied: binding, build tag
guard and directive options. Nothing is built, invoked or written.

Examples:
  bake scan ./...
  bake scan --format json ./internal/tables`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runScan(opts *RootOptions, patterns []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	g := generator.New(cfg,
		generator.WithLogger(opts.logger(cmd.ErrOrStderr())),
		generator.WithSink(formatter.Sink()),
	)
	res, err := g.Scan(cmd.Context(), patterns...)
	if err != nil {
		_ = formatter.Error(ErrCodeFatal, err.Error(), res)
		return WrapExitError(ExitCommandError, "scan aborted", err)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(res); err != nil {
			return err
		}
	} else {
		printOutcomes(formatter, res.Outcomes)
	}
	if n := res.Errors(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d member error(s)", n))
	}
	return nil
}

// printOutcomes writes one line per member: position, key and state.
func printOutcomes(f *OutputFormatter, outcomes []generator.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(f.Writer, "no designated members")
		return
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	for _, o := range outcomes {
		state := "ok"
		if o.Status == generator.StatusSkipped {
			state = o.Code
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Pos, o.Key, state)
	}
	tw.Flush()
}
