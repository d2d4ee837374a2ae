package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDetailCmd() *cobra.Command {
	var (
		withArticles bool
		withFullText bool
		format       string
	)

	cmd := &cobra.Command{
		Use:   "detail <law-id>",
		Short: "Show a published law",
		Long: `Show the metadata of a published law, optionally with its articles
and composed full text.

Examples:
  lawsearch detail 011357
  lawsearch detail 011357 --articles
  lawsearch detail 011357 --full-text --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			detail, err := app.service.GetDetail(cmd.Context(), args[0], withArticles, withFullText)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(detail)
			}

			law := detail.Law
			fmt.Fprintf(out, "%s (%s)\n", law.Name, law.LawID)
			if law.Abbreviation != "" {
				fmt.Fprintf(out, "  약칭:     %s\n", law.Abbreviation)
			}
			fmt.Fprintf(out, "  소관부처: %s\n", law.Department)
			fmt.Fprintf(out, "  법종구분: %s\n", law.LawType)
			fmt.Fprintf(out, "  현행여부: %s\n", law.Status)
			fmt.Fprintf(out, "  시행일자: %s\n", law.EnforceDate)
			if law.DetailLink != "" {
				fmt.Fprintf(out, "  링크:     %s\n", law.DetailLink)
			}

			for _, art := range detail.Articles {
				fmt.Fprintf(out, "\n%s %s\n%s\n", art.ArticleNo, art.Title, art.Content)
			}
			if withFullText && law.FullText != "" {
				fmt.Fprintf(out, "\n%s\n", law.FullText)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withArticles, "articles", false, "Include the law's articles")
	cmd.Flags().BoolVar(&withFullText, "full-text", false, "Include the composed full text")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
