package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/mktwh/internal/cli/output"
	"github.com/leapstack-labs/mktwh/internal/query"
)

const (
	replPrompt     = "mktwh> "
	replContPrompt = "  ...> "
)

func runQueryREPL(cmd *cobra.Command, cmdCtx *CommandContext, sess *query.Session) error {
	ctx := cmd.Context()
	r := cmdCtx.Renderer

	historyDir := filepath.Dir(cmdCtx.Cfg.StatePath)
	if err := os.MkdirAll(historyDir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(historyDir, "query_history"),
		AutoComplete:    newTableCompleter(sess),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.Printf("mktwh query REPL (warehouse: %s, %d tables)\n", cmdCtx.Cfg.WarehouseDir, len(sess.Tables()))
	r.Println("Type .help for commands, .quit to exit")
	r.Println("")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, r, sess, line); quit {
				return nil
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		stmt := buf.String()
		buf.Reset()
		res, err := sess.Query(ctx, stmt)
		if err != nil {
			r.Error(err.Error())
			continue
		}
		if err := renderResult(r, res); err != nil {
			r.Error(err.Error())
		}
		r.Println("")
	}
}

// handleDotCommand runs a REPL dot-command and reports whether to quit.
func handleDotCommand(ctx context.Context, r *output.Renderer, sess *query.Session, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(r)
	case ".tables":
		listTables(r, sess)
	case ".schema":
		if len(parts) < 2 {
			r.Warning("Usage: .schema <table>")
			return false
		}
		if err := showSchema(ctx, r, sess, parts[1]); err != nil {
			r.Error(err.Error())
		}
	default:
		r.Warning(fmt.Sprintf("Unknown command: %s (type .help for commands)", parts[0]))
	}
	return false
}

func printREPLHelp(r *output.Renderer) {
	r.Println(`
Commands:
  .help           Show this help message
  .tables         List the warehouse tables
  .schema <name>  Show the columns of a table
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Only read-only statements are accepted
  - Tab completion works for table names`)
}

func newTableCompleter(sess *query.Session) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range sess.Tables() {
		items = append(items, readline.PcItem(name))
	}
	schema := make([]readline.PrefixCompleterInterface, 0, len(sess.Tables()))
	for _, name := range sess.Tables() {
		schema = append(schema, readline.PcItem(name))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema", schema...),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
