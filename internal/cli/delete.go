package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	Yes bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete the card at a position",
		Long: `Delete the card at the given position, as listed by the cards command.
Only that card is removed, even when other cards share its word.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return runDelete(rootOpts, opts, cmd, index)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "delete without asking for confirmation")

	return cmd
}

func runDelete(rootOpts *RootOptions, opts *DeleteOptions, cmd *cobra.Command, index int) error {
	e, err := rootOpts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	card, err := e.Card(index)
	if err != nil {
		return cardError(err)
	}

	if !opts.Yes {
		fmt.Fprintf(cmd.ErrOrStderr(), "Delete card %d %q? [Y/n] ", index, card.Word)
		answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return WrapExitError(ExitFailure, "failed to read confirmation", err)
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "" && !strings.HasPrefix(a, "y") {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
			return err
		}
	}

	removed, err := e.Delete(index)
	if err != nil {
		return cardError(err)
	}

	return rootOpts.formatter(cmd).Print(listedCard{Index: index, Card: removed}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Deleted %q.\n", removed.Word)
		return err
	})
}
