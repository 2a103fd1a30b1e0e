package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flashdeck/internal/domain"
)

type importResult struct {
	domain.ImportReport `yaml:",inline"`
	Problems            []string `json:"errors" yaml:"errors"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <path | repo-url//path/in/repo>",
		Short: "Merge a word|definition table into the deck",
		Long: `Merge a pipe-delimited word|definition table into the deck.

A word already in the deck gets the table's definition and keeps its date,
viewed and tally counts. Other words are added as new cards. Rows that
cannot be read are listed and skipped. Importing the same table twice
changes nothing.

The table may live in a git repository: https://host/owner/repo.git//vocab.txt
clones (or pulls) the repository into the repo cache and reads vocab.txt.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runImport(opts *RootOptions, cmd *cobra.Command, source string) error {
	e, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.ImportFrom(cmd.Context(), source)
	if err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}

	result := importResult{ImportReport: report, Problems: []string{}}
	for _, perr := range report.Errors {
		result.Problems = append(result.Problems, perr.Error())
	}

	return opts.formatter(cmd).Print(result, func(w io.Writer) error {
		fmt.Fprintf(w, "Imported %s: %d added, %d updated, %d unchanged, %d malformed.\n",
			report.Source, report.Added, report.Updated, report.Unchanged, report.Malformed)
		for _, p := range result.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
		if !report.Changed {
			fmt.Fprintln(w, "Deck unchanged.")
		}
		return nil
	})
}
