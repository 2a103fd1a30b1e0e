package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// CardsOptions holds flags for the cards command.
type CardsOptions struct {
	ShowLinks bool
	Link      int
	Full      bool
}

type listedCard struct {
	Index       int `json:"index" yaml:"index"`
	domain.Card `yaml:",inline"`
}

// NewCardsCommand creates the cards command.
func NewCardsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CardsOptions{}

	cmd := &cobra.Command{
		Use:   "cards [index]",
		Short: "List the cards, or show one card in full",
		Long: `List the cards with their position and tally, or show the card at a
position. Positions are the ones used by the delete command.

Links in definitions are shown as [description] unless --show-links is
given; --link k prints the URL of the k-th link of the card.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runCardsList(rootOpts, opts, cmd)
			}
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return runCardsShow(rootOpts, opts, cmd, index)
		},
	}

	cmd.Flags().BoolVar(&opts.ShowLinks, "show-links", false, "show link URLs in definitions")
	cmd.Flags().IntVar(&opts.Link, "link", 0, "print the URL of the k-th link of the card")
	cmd.Flags().BoolVarP(&opts.Full, "full", "l", false, "list every card with its definition and counts")

	return cmd
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil || index < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid card position %q", arg))
	}
	return index, nil
}

func cardError(err error) error {
	if errors.Is(err, domain.ErrCardNotFound) {
		return WrapExitError(ExitCommandError, "no such card", err)
	}
	return WrapExitError(ExitFailure, "failed to read deck", err)
}

func runCardsList(rootOpts *RootOptions, opts *CardsOptions, cmd *cobra.Command) error {
	e, err := rootOpts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := e.Deck()
	if err != nil {
		return cardError(err)
	}
	cards := d.Cards()

	listed := make([]listedCard, len(cards))
	for i, c := range cards {
		listed[i] = listedCard{Index: i, Card: c}
	}

	return rootOpts.formatter(cmd).Print(listed, func(w io.Writer) error {
		if d.Fresh() {
			printFirstRun(w, d.Path())
			return nil
		}
		if len(cards) == 0 {
			_, err := fmt.Fprintln(w, "The deck is empty.")
			return err
		}
		for i, c := range cards {
			if opts.Full {
				writeCard(w, i, c, rootOpts.cfg.DateFormat, opts.ShowLinks)
				continue
			}
			fmt.Fprintf(w, "%d. %-30s (tally: %d)\n", i, firstLine(c.Word), c.Tally)
		}
		return nil
	})
}

func runCardsShow(rootOpts *RootOptions, opts *CardsOptions, cmd *cobra.Command, index int) error {
	e, err := rootOpts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	card, err := e.Card(index)
	if err != nil {
		return cardError(err)
	}

	if opts.Link != 0 {
		url, ok := LinkAt(card.Definition, opts.Link)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("card %d has no link %d (it has %d)", index, opts.Link, CountLinks(card.Definition)))
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), url)
		return err
	}

	return rootOpts.formatter(cmd).Print(listedCard{Index: index, Card: card}, func(w io.Writer) error {
		writeCard(w, index, card, rootOpts.cfg.DateFormat, opts.ShowLinks)
		return nil
	})
}

func writeCard(w io.Writer, index int, c domain.Card, layout string, showLinks bool) {
	definition := c.Definition
	if !showLinks {
		definition = HideLinks(definition)
	}
	separator := strings.Repeat("-", 21)
	fmt.Fprintf(w, "%s %s, viewed: %d, tally: %d %s\n", separator, c.Created.Format(layout), c.Viewed, c.Tally, separator)
	fmt.Fprintf(w, "%d. %s\n%s\n", index, c.Word, definition)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
