package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newArticlesCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "articles <law-id> <query>",
		Short: "Find the provisions of a law closest to a query",
		Long: `Search within one law at article granularity using embedding
similarity.

Examples:
  lawsearch articles 011357 "동의 없이 수집"
  lawsearch articles 011357 "파기" --limit 3 --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			lawID := args[0]
			query := strings.Join(args[1:], " ")

			hits, err := app.service.SearchArticles(cmd.Context(), lawID, query, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(hits)
			}

			if len(hits) == 0 {
				fmt.Fprintf(out, "No matching articles in %s for %q\n", lawID, query)
				return nil
			}
			for i, hit := range hits {
				fmt.Fprintf(out, "%2d. %s %s  score=%.3f\n",
					i+1, hit.Article.ArticleNo, hit.Article.Title, hit.Score)
				fmt.Fprintf(out, "    %s\n", firstLine(hit.Article.Content))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of articles")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
