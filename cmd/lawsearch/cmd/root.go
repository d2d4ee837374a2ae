// Package cmd provides the CLI commands for lawsearch.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the lawsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lawsearch",
		Short: "Hybrid statute search over Korean law.go.kr documents",
		Long: `lawsearch ingests statutes from the law.go.kr open API and serves
hybrid search over them, combining BM25 keyword matching with
embedding-based semantic similarity.

Typical flow:
  lawsearch collect "개인정보"          # fetch and index laws
  lawsearch search "개인정보 수집 동의"   # query the corpus
  lawsearch detail 011357 --articles    # inspect one law
  lawsearch serve                       # run the collection scheduler`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lawsearch.yaml", "Config file path")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDetailCmd())
	cmd.AddCommand(newArticlesCmd())
	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
