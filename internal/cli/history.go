package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bake/internal/config"
	"github.com/roach88/bake/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Pass    string
	Limit   int
}

// PassDetail is one pass with its members.
type PassDetail struct {
	journal.Pass
	Members []journal.MemberRecord `json:"members"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show passes recorded in the journal",
		Long: `List the passes recorded in a bake journal, most recent first, or the
members of one pass in invocation order.

Examples:
  bake history --journal .bake/journal.db
  bake history --journal .bake/journal.db --pass 01920f3c-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal file (defaults to the config's journal)")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "show the members of this pass")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of passes to list")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	path := opts.Journal
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return err
		}
		path = cfg.Journal
	}
	if path == "" {
		msg := "no journal: pass --journal or set journal in " + config.FileName
		_ = formatter.Error(ErrCodeJournal, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	j, err := journal.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening journal", err)
	}
	defer j.Close()
	ctx := cmd.Context()

	if opts.Pass != "" {
		p, err := j.Pass(ctx, opts.Pass)
		if errors.Is(err, journal.ErrNotFound) {
			msg := fmt.Sprintf("pass %s not found", opts.Pass)
			_ = formatter.Error(ErrCodeJournal, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "reading journal", err)
		}
		members, err := j.Members(ctx, p.ID)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "reading journal", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(PassDetail{Pass: p, Members: members})
		}
		fmt.Fprintf(formatter.Writer, "pass %s  %s  %s\n", p.ID, p.Status, strings.Join(p.Patterns, " "))
		tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
		for _, m := range members {
			seq := "-"
			if m.Seq > 0 {
				seq = fmt.Sprint(m.Seq)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.Ord, seq, m.Key, m.Status, m.Code)
		}
		return tw.Flush()
	}

	passes, err := j.Passes(ctx, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading journal", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(passes)
	}
	if len(passes) == 0 {
		fmt.Fprintln(formatter.Writer, "no passes recorded")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	for _, p := range passes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.StartedAt, p.Status, strings.Join(p.Patterns, " "))
	}
	return tw.Flush()
}
