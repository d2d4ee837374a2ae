package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yeonlab/lawsearch/internal/search"
	"github.com/yeonlab/lawsearch/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode        string
	limit       int
	department  string
	lawType     string
	status      string
	enforceFrom string
	enforceTo   string
	format      string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the statute corpus",
		Long: `Search indexed statutes using hybrid retrieval.

Combines BM25 keyword matching with embedding similarity using
weighted score fusion. Comma-separated queries fan out and merge.

Examples:
  lawsearch search "개인정보 수집 동의"
  lawsearch search "저작권" --mode lexical --limit 5
  lawsearch search "근로 시간" --department 고용노동부
  lawsearch search "의료" --enforce-from 20240101 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Search mode: hybrid, lexical, semantic")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = configured default)")
	cmd.Flags().StringVar(&opts.department, "department", "", "Filter by issuing department")
	cmd.Flags().StringVar(&opts.lawType, "law-type", "", "Filter by law type (법률, 대통령령, ...)")
	cmd.Flags().StringVar(&opts.status, "status", "", "Filter by status (현행, 폐지)")
	cmd.Flags().StringVar(&opts.enforceFrom, "enforce-from", "", "Minimum enforcement date (yyyymmdd)")
	cmd.Flags().StringVar(&opts.enforceTo, "enforce-to", "", "Maximum enforcement date (yyyymmdd)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	app, err := buildApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	resp, err := app.service.Search(cmd.Context(), search.Query{
		Text: query,
		Mode: search.Mode(opts.mode),
		TopK: opts.limit,
		Filter: store.Filter{
			Department:  opts.department,
			LawType:     opts.lawType,
			Status:      opts.status,
			EnforceFrom: opts.enforceFrom,
			EnforceTo:   opts.enforceTo,
		},
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := cmd.OutOrStdout()
	if len(resp.Hits) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}
	if resp.Degraded {
		fmt.Fprintln(out, "Warning: one search provider was unavailable, results are partial")
	}

	fmt.Fprintf(out, "Found %d results for %q", len(resp.Hits), query)
	if resp.CacheHit {
		fmt.Fprint(out, " (cached)")
	}
	fmt.Fprintln(out)

	for i, hit := range resp.Hits {
		detail, err := app.service.GetDetail(cmd.Context(), hit.LawID, false, false)
		name := hit.LawID
		if err == nil {
			name = fmt.Sprintf("%s (%s)", detail.Law.Name, hit.LawID)
		}
		fmt.Fprintf(out, "%2d. %s  score=%.3f  lex=%.3f sem=%.3f\n",
			i+1, name, hit.Score, hit.LexicalScore, hit.SemanticScore)
	}
	return nil
}
