package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yeonlab/lawsearch/internal/ingest"
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect [seed-query]",
		Short: "Run a collection job now",
		Long: `Fetch laws matching the seed query from law.go.kr and index them.
Without a seed query the configured seed queries are used.
Comma-separated seeds fan out into parallel upstream requests.

Examples:
  lawsearch collect
  lawsearch collect "개인정보, 저작권"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			seed := strings.Join(args, " ")
			job := app.scheduler.TriggerAndWait(cmd.Context(), seed)
			snap := job.Snapshot()

			out := cmd.OutOrStdout()
			switch snap.State {
			case ingest.JobSkipped:
				fmt.Fprintln(out, "Collection skipped: another run is in progress")
			default:
				fmt.Fprintf(out, "Collection %s: %d laws processed, %d errors\n",
					snap.State, snap.Processed, len(snap.Errors))
				for _, itemErr := range snap.Errors {
					if itemErr.LawID != "" {
						fmt.Fprintf(out, "  %s: %s\n", itemErr.LawID, itemErr.Error)
					} else {
						fmt.Fprintf(out, "  %s\n", itemErr.Error)
					}
				}
			}

			if snap.State == ingest.JobFailed {
				return fmt.Errorf("collection failed")
			}
			return nil
		},
	}
	return cmd
}
