package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/scrypster/warmconnector/internal/config"
	"github.com/scrypster/warmconnector/internal/logging"
	"github.com/scrypster/warmconnector/internal/server"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "warmconnector",
		Short: "Find warm introduction paths through your relationship graph",
		Long: `WarmConnector finds the strongest introduction paths from you to a target
person, falling back to fuzzy matches when no path exists.

Configuration is read from --config (or $WARMCONNECTOR_CONFIG) and
WARMCONNECTOR_* environment variables.`,
		SilenceUsage: true,
		Version:      server.Version,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newReportCmd(opts),
		newInvalidateCmd(opts),
	)
	return cmd
}

// loadConfig loads configuration and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// openApp loads configuration and wires the search stack. Logs go to the
// command's stderr so stdout stays machine readable.
func (o *rootOptions) openApp(ctx context.Context, cmd *cobra.Command) (*server.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
	return server.NewApp(ctx, cfg, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
