package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a performance report",
		Long: `Print the performance report as JSON. With --url the report is fetched from
a running server's /api/performance endpoint; otherwise a local report is
built from the configured store (pool and cache statistics only).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL != "" {
				return fetchReport(cmd.Context(), cmd.OutOrStdout(), baseURL, timeout)
			}

			app, err := opts.openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return writeJSON(cmd.OutOrStdout(), app.Monitor.Report())
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "base URL of a running server, e.g. http://127.0.0.1:6464")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "HTTP timeout for --url")
	return cmd
}

func fetchReport(ctx context.Context, w io.Writer, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimSuffix(baseURL, "/") + "/api/performance"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
