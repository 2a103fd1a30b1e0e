package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flashdeck/internal/engine"
	"github.com/conorfennell/flashdeck/internal/storage"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	Limit   int
	Imports bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past review sessions or imports",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of entries to show, 0 for all")
	cmd.Flags().BoolVar(&opts.Imports, "imports", false, "list imports instead of sessions")

	return cmd
}

func runHistory(rootOpts *RootOptions, opts *HistoryOptions, cmd *cobra.Command) error {
	e, err := rootOpts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if opts.Imports {
		return runImportHistory(rootOpts, opts, cmd, e)
	}

	rows, err := e.History(cmd.Context(), opts.Limit)
	if err != nil {
		return journalError(err, "failed to read history")
	}
	if rows == nil {
		rows = []storage.SessionRow{}
	}

	return rootOpts.formatter(cmd).Print(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "No sessions yet.")
			return err
		}
		for _, r := range rows {
			status := "completed"
			switch {
			case !r.Recorded:
				status = "dry run"
			case !r.Completed:
				status = "stopped early"
			}
			fmt.Fprintf(w, "%s  %3d reviewed  %3d known  %2d retired  %s\n",
				r.EndedAt.Local().Format("2006-01-02 15:04"), r.Presented, r.Correct, r.Retired, status)
		}
		return nil
	})
}

func runImportHistory(rootOpts *RootOptions, opts *HistoryOptions, cmd *cobra.Command, e *engine.Engine) error {
	rows, err := e.Imports(cmd.Context(), opts.Limit)
	if err != nil {
		return journalError(err, "failed to read import history")
	}
	if rows == nil {
		rows = []storage.ImportRow{}
	}

	return rootOpts.formatter(cmd).Print(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "No imports yet.")
			return err
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%s  %3d added  %3d updated  %3d unchanged  %2d malformed  %s\n",
				r.ImportedAt.Local().Format("2006-01-02 15:04"), r.Added, r.Updated, r.Unchanged, r.Malformed, r.Source)
		}
		return nil
	})
}

func journalError(err error, message string) error {
	if errors.Is(err, engine.ErrNoJournal) {
		return WrapExitError(ExitCommandError, "no history", err)
	}
	return WrapExitError(ExitFailure, message, err)
}
