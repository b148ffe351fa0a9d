package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/warmconnector/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := opts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr != "" {
				host, port, err := splitAddr(addr)
				if err != nil {
					return err
				}
				app.Config.Server.Host, app.Config.Server.Port = host, port
			}

			listenAddr, err := server.Start(ctx, app)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "WarmConnector API running at http://%s\n", listenAddr)

			<-ctx.Done()
			app.Logger.Info("shutting down")

			// Let in-flight requests drain before the store closes.
			drain := app.Config.Server.ShutdownTimeout
			if drain > time.Second {
				drain = time.Second
			}
			time.Sleep(drain)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address host:port (overrides config)")
	return cmd
}

// splitAddr parses host:port.
func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --addr port %q: %w", portStr, err)
	}
	return host, port, nil
}
