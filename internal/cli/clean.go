package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bake/internal/generator"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	DryRun bool
}

// CleanResult lists the files clean removed, or would remove.
type CleanResult struct {
	Files  []string `json:"files"`
	DryRun bool     `json:"dry_run"`
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean [packages]",
		Short: "Remove generated files",
		Long: `Remove every bake_*_gen.go file carrying the bake header from the
given packages. Files without the header are never touched.

Examples:
  bake clean ./...
  bake clean --dry-run ./...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list files instead of removing them")

	return cmd
}

func runClean(opts *CleanOptions, patterns []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = opts.DryRun
	}

	g := generator.New(cfg,
		generator.WithLogger(opts.logger(cmd.ErrOrStderr())),
		generator.WithSink(formatter.Sink()),
	)
	files, err := g.Clean(cmd.Context(), patterns...)
	if err != nil {
		_ = formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "clean failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(CleanResult{Files: files, DryRun: cfg.DryRun})
	}
	verb := "removed"
	if cfg.DryRun {
		verb = "would remove"
	}
	for _, f := range files {
		fmt.Fprintf(formatter.Writer, "%s %s\n", verb, f)
	}
	fmt.Fprintf(formatter.Writer, "%d file(s)\n", len(files))
	return nil
}
