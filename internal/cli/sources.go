package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type sourceView struct {
	Path         string     `json:"path" yaml:"path"`
	LastImported *time.Time `json:"last_imported" yaml:"last_imported"`
}

// NewSourcesCommand creates the sources command.
func NewSourcesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the tables that have been imported",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(rootOpts, cmd)
		},
	}
	return cmd
}

func runSources(opts *RootOptions, cmd *cobra.Command) error {
	e, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	sources, err := e.Sources(cmd.Context())
	if err != nil {
		return journalError(err, "failed to read sources")
	}

	views := make([]sourceView, len(sources))
	for i, s := range sources {
		views[i] = sourceView{Path: s.Path}
		if s.LastImported.Valid {
			at := s.LastImported.Time
			views[i].LastImported = &at
		}
	}

	return opts.formatter(cmd).Print(views, func(w io.Writer) error {
		if len(views) == 0 {
			_, err := fmt.Fprintln(w, "No sources yet.")
			return err
		}
		for _, v := range views {
			last := "never"
			if v.LastImported != nil {
				last = v.LastImported.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s  %s\n", last, v.Path)
		}
		return nil
	})
}
