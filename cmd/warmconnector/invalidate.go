package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/warmconnector/internal/notify"
)

func newInvalidateCmd(opts *rootOptions) *cobra.Command {
	var personID string

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Tell running servers the graph changed",
		Long: `Write a graph change event into the configured cache.events_dir. Servers
watching that directory purge their caches when the event arrives. Run
this after importing people or relationships.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.EventsDir == "" {
				return fmt.Errorf("cache.events_dir is not configured")
			}

			eventType := notify.EventGraphUpdated
			if personID != "" {
				eventType = notify.EventPersonUpdated
			}
			if err := notify.NewEventWriter(cfg.Cache.EventsDir).Notify(eventType, personID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s event written to %s\n", eventType, cfg.Cache.EventsDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&personID, "person", "", "id of the changed person (omit for a bulk change)")
	return cmd
}
