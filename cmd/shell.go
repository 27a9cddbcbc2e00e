package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cGreeting.Printf("crmetrics shell (%s)\n", db.Dialect())
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	ctx := cmd.Context()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("crmetrics")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		name, rest, _ := strings.Cut(line, " ")
		if name == "exit" || name == "quit" {
			return nil
		}
		if err := shellDispatch(ctx, db, name, strings.TrimSpace(rest)); err != nil {
			cError.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func shellDispatch(ctx context.Context, db *storage.DB, name, rest string) error {
	args := strings.Fields(rest)
	switch name {
	case "help":
		shellHelp()
	case "summary":
		return printSummary(ctx, db)
	case "list":
		player, limit := "", 20
		for _, a := range args {
			if n, err := strconv.Atoi(a); err == nil {
				limit = n
			} else {
				player = a
			}
		}
		return printBattles(ctx, db, player, limit)
	case "show":
		if len(args) == 0 {
			cError.Fprintln(os.Stderr, "usage: show <id-prefix>")
			return nil
		}
		return printBattle(ctx, db, args[0])
	case "sql":
		if rest == "" {
			cError.Fprintln(os.Stderr, "usage: sql <query>")
			return nil
		}
		return printQuery(ctx, db, rest)
	default:
		cWarn.Fprintf(os.Stderr, "unknown command %q, type 'help'\n", name)
	}
	return nil
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"summary", "row counts and battles per mode"},
		{"list [#TAG] [n]", "most recent battles, optionally for one player"},
		{"show <id-prefix>", "one battle with both decks"},
		{"sql <query>", "run a raw SQL query"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-24s", r.cmd)
		fmt.Println(r.desc)
	}
	fmt.Println()
}
