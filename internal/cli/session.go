package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// NewGoCommand creates the go command, which runs one review session.
func NewGoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "go",
		Short: "Review every card once",
		Long: `Shuffle the deck and review every card once.

Each word is shown; press Enter to see its definition, then answer whether
you knew it. Known cards gain a tally point and cards that reach max-tally
are retired. Results are saved when the session ends, including when it is
stopped early with q. With --dry-run nothing is saved.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGo(rootOpts, cmd)
		},
	}
	return cmd
}

func runGo(opts *RootOptions, cmd *cobra.Command) error {
	e, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := e.Deck()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load deck", err)
	}

	// prompts go to stderr when stdout carries structured output
	out := cmd.OutOrStdout()
	formatter := opts.formatter(cmd)
	if formatter.Structured() {
		out = cmd.ErrOrStderr()
	}

	if d.Fresh() {
		printFirstRun(out, d.Path())
	}

	term := NewTerminal(cmd.InOrStdin(), out, opts.cfg.DryRun)
	defer term.Close()
	total := d.Len()
	term.Intro(total)

	report, err := e.Go(cmd.Context(), term)
	if err != nil {
		return WrapExitError(ExitFailure, "session failed", err)
	}

	return formatter.Print(report, func(w io.Writer) error {
		writeSummary(w, report, total)
		return nil
	})
}

func writeSummary(w io.Writer, report domain.SessionReport, total int) {
	fmt.Fprintf(w, "\n=== The End ===\n\n")
	fmt.Fprintf(w, "Reviewed %d of %d cards, %d known.\n", report.Presented, total, report.Correct)
	if len(report.Retired) > 0 {
		verb := "Retired"
		if !report.Recorded {
			verb = "Would retire"
		}
		fmt.Fprintf(w, "%s: %s\n", verb, strings.Join(report.Retired, ", "))
	}
	if report.Presented > 0 {
		percent := 100 * report.Correct / report.Presented
		mark := ""
		if percent >= 80 {
			mark = "!"
		}
		fmt.Fprintf(w, "%d%% answered correctly%s\n", percent, mark)
	}
	if len(report.Missed) > 0 {
		fmt.Fprintln(w, "These are the words you missed:")
		for i, word := range report.Missed {
			if i < len(report.MissedAt) {
				fmt.Fprintf(w, "  %d. %s\n", report.MissedAt[i], word)
				continue
			}
			fmt.Fprintf(w, "  %s\n", word)
		}
	}
	if !report.Recorded {
		fmt.Fprintln(w, "Results were not recorded (dry run).")
	}
}

// printFirstRun tells a new user where the deck will be created.
func printFirstRun(w io.Writer, path string) {
	fmt.Fprintf(w, "No deck yet: %s will be created when the first card is added.\n", path)
	fmt.Fprintln(w, `Add cards with "flashdeck add <word> <definition>" or "flashdeck import <table>".`)
	fmt.Fprintln(w)
}
