package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/warmconnector/internal/engine"
)

type searchOptions struct {
	name        string
	company     string
	title       string
	mode        string
	from        string
	maxHops     int
	minStrength int
	weakTies    bool
	external    bool
	trace       bool
	asJSON      bool
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	so := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [target name]",
		Short: "Find introduction paths to a person",
		Example: `  warmconnector search "Jane Doe" --company "Acme Corp"
  warmconnector search --name "Jane Doe" --from demo-user-001 --mode comprehensive --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				so.name = args[0]
			}
			if strings.TrimSpace(so.name) == "" {
				return fmt.Errorf("a target name is required")
			}
			if _, ok := engine.ParseSearchMode(so.mode); !ok {
				return fmt.Errorf("unknown search mode %q (want smart, advanced or comprehensive)", so.mode)
			}

			app, err := opts.openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			resp := app.Resolver.FindConnections(cmd.Context(), so.request())

			if so.asJSON {
				if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			} else {
				printSearch(cmd.OutOrStdout(), resp)
			}

			switch resp.Source {
			case engine.SourceInvalidRequest:
				return fmt.Errorf("invalid request: %s", resp.Strategy)
			case engine.SourceError:
				return fmt.Errorf("search failed: %s", resp.Strategy)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&so.name, "name", "n", "", "target person's name")
	f.StringVar(&so.company, "company", "", "target person's company")
	f.StringVar(&so.title, "title", "", "target person's title")
	f.StringVarP(&so.mode, "mode", "m", "", "search mode: smart, advanced or comprehensive")
	f.StringVar(&so.from, "from", "", "source person id (defaults to the configured user)")
	f.IntVar(&so.maxHops, "max-hops", 0, "maximum path length (1-3)")
	f.IntVar(&so.minStrength, "min-strength", 0, "drop paths weaker than this (0-100)")
	f.BoolVar(&so.weakTies, "include-weak-ties", false, "keep paths below --min-strength")
	f.BoolVar(&so.external, "external", false, "query the external enrichment provider (comprehensive mode)")
	f.BoolVar(&so.trace, "trace", false, "include search trace events")
	f.BoolVar(&so.asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func (so *searchOptions) request() engine.SearchRequest {
	return engine.SearchRequest{
		TargetName:    so.name,
		TargetCompany: so.company,
		TargetTitle:   so.title,
		SearchMode:    engine.SearchMode(so.mode),
		UserContext:   engine.UserContext{FromPersonID: so.from},
		Options: engine.SearchOptions{
			MaxHops:                  so.maxHops,
			MinStrength:              so.minStrength,
			IncludeWeakTies:          so.weakTies,
			EnableExternalEnrichment: so.external,
			Trace:                    so.trace,
		},
	}
}

func printSearch(w io.Writer, resp engine.SearchResponse) {
	fmt.Fprintln(w, resp.Strategy)
	fmt.Fprintf(w, "source: %s  results: %d  time: %dms", resp.Source, resp.TotalResults, resp.ProcessingTime)
	if resp.CacheHit {
		fmt.Fprint(w, "  (cached)")
	}
	fmt.Fprintln(w)

	for i, p := range resp.Paths {
		names := make([]string, len(p.Path))
		for j, n := range p.Path {
			names[j] = n.Name
		}
		fmt.Fprintf(w, "%d. %s  [hops %d, strength %d]\n", i+1, strings.Join(names, " -> "), p.Hops, p.TotalStrength)
	}
	for _, m := range resp.Matches {
		fmt.Fprintf(w, "~ %s (%s) confidence %.2f\n", m.Person.Name, m.Person.Company, m.Confidence)
	}
	for _, e := range resp.Enrichment {
		fmt.Fprintf(w, "* %s (%s) via %s\n", e.Name, e.Company, e.Source)
	}
}
