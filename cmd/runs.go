package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// newRunsCmd creates the 'runs' subcommand for inspecting the run log.
func newRunsCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Lists run log entries for a date range",
		Long: `Prints every recorded crawl attempt for the days between --from and
--to inclusive, in the order they were appended. Useful for checking
which days failed and how many attempts they burned.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := crawl.ParseDay(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end := start
			if to != "" {
				if end, err = crawl.ParseDay(to); err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}
			window, err := crawl.NewWindow(start, end)
			if err != nil {
				return err
			}

			cfg, cleanup, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			runLog, closeRunLog, err := buildRunLog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRunLog()

			outcomes, err := runLog.Query(cmd.Context(), window.Start, window.End)
			if err != nil {
				return fmt.Errorf("query run log: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				fmt.Fprintln(out, formatOutcome(o))
			}
			fmt.Fprintf(out, "%d attempts between %s and %s\n", len(outcomes), window.Start, window.End)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to list (DD.MM.YYYY)")
	cmd.Flags().StringVar(&to, "to", "", "last day to list, inclusive (DD.MM.YYYY, defaults to --from)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func formatOutcome(o crawl.Outcome) string {
	line := fmt.Sprintf("%s attempt=%d status=%s duration=%s run=%s",
		o.Day, o.Attempt, o.Status, o.Duration().Round(time.Millisecond), o.RunID)
	if o.ErrorText != "" {
		line += fmt.Sprintf(" error=%q", o.ErrorText)
	}
	return line
}
