package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <word> <definition>",
		Short: "Add a card to the deck",
		Long: `Add a card dated today with zero viewed and tally counts.

The definition may hold several lines, pipes, quotes and [description](url)
links. A word that is already in the deck is added again as a separate card.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, cmd, args[0], args[1])
		},
	}
	return cmd
}

func runAdd(opts *RootOptions, cmd *cobra.Command, word, definition string) error {
	e, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	card, err := e.Add(word, definition)
	if err != nil {
		var empty *domain.EmptyFieldError
		if errors.As(err, &empty) {
			return WrapExitError(ExitCommandError, "invalid card", err)
		}
		return WrapExitError(ExitFailure, "failed to add card", err)
	}

	return opts.formatter(cmd).Print(card, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Added %q.\n", card.Word)
		return err
	})
}
