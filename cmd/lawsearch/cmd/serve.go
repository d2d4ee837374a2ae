package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collection scheduler",
		Long: `Run the cron-driven collection scheduler in the foreground until
interrupted. Scheduled runs use the configured seed queries; a tick
that fires while a run is still in progress is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			if !app.cfg.Ingest.Enabled {
				return fmt.Errorf("scheduled ingestion is disabled, set ingest.enabled: true")
			}

			app.scheduler.Start(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduler running (%s), press Ctrl-C to stop\n",
				app.cfg.Ingest.Schedule)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sig:
			case <-cmd.Context().Done():
			}

			app.scheduler.Stop()
			fmt.Fprintln(cmd.OutOrStdout(), "Scheduler stopped")
			return nil
		},
	}
	return cmd
}
