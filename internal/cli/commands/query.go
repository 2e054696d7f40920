package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/mktwh/internal/query"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the warehouse with SQL",
		Long: `Run read-only SQL against the built warehouse.

Every table under the warehouse directory is exposed as a DuckDB view with
the table's name, so dimensions and facts can be joined directly.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Spend by channel
  mktwh query "SELECT channel, round(sum(spend), 2) FROM fact_paid_social_daily GROUP BY 1 ORDER BY 2 DESC"

  # Read SQL from a file, print JSON
  mktwh query -i report.sql -o json

  # Interactive mode
  mktwh query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	var sqlQuery string
	stdin := cmd.InOrStdin()
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(stdin):
		content, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}

	sess, err := query.Open(cmd.Context(), cmdCtx.Layout(), cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("%w (run 'mktwh build' first)", err)
	}
	defer func() { _ = sess.Close() }()

	if sqlQuery == "" {
		return runQueryREPL(cmd, cmdCtx, sess)
	}

	res, err := sess.Query(cmd.Context(), sqlQuery)
	if err != nil {
		return err
	}
	return renderResult(cmdCtx.Renderer, res)
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
