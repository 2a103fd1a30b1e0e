package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flashdeck/internal/config"
	"github.com/conorfennell/flashdeck/internal/engine"
)

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	Format string // "text" | "json" | "yaml"

	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the flashdeck CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{now: time.Now})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flashdeck",
		Short: "flashdeck - word/definition flashcards in a plain text file",
		Long: `A flashcard tool for learning words.

Cards live in a pipe-delimited text file that any spreadsheet can edit.
Each review session shuffles the deck, shows every word and its definition,
and counts correct recalls. A card is retired once it has been recalled
correctly max-tally times.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.cfg = cfg
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
			return nil
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	})

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewGoCommand(opts))
	cmd.AddCommand(NewCardsCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewSourcesCommand(opts))

	return cmd
}

// Execute runs the CLI with the given arguments and streams and returns the
// process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	return execute(ctx, cmd, args, stdin, stdout, stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if strings.HasPrefix(err.Error(), "unknown command") {
		return ExitCommandError
	}
	return GetExitCode(err)
}

// openEngine opens the engine for the loaded configuration.
func (o *RootOptions) openEngine() (*engine.Engine, error) {
	e, err := engine.Open(o.cfg, engine.WithLogger(o.logger), engine.WithClock(o.now))
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open flashdeck", err)
	}
	return e, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// usageArgs marks argument validation failures as command errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}
