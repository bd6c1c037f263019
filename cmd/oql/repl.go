package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/dsblank/object-ql/objectql/parser"
	"github.com/dsblank/object-ql/objectql/query"
)

// ReplCmd runs queries read from stdin.
type ReplCmd struct {
	Fields []string `help:"Record fields to show" short:"f" sep:","`
}

// Run executes the repl command
func (cmd *ReplCmd) Run(ctx *Context) error {
	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	bold := color.New(color.Bold)
	bold.Fprintln(ctx.Out, "=== oql interactive mode ===")
	fmt.Fprintln(ctx.Out, "Commands:")
	fmt.Fprintln(ctx.Out, "  .help           - Show help")
	fmt.Fprintln(ctx.Out, "  .exit           - Exit")
	fmt.Fprintln(ctx.Out, "  .parse <query>  - Show the normalized query")
	fmt.Fprintln(ctx.Out, "  .tables <query> - Show the collections a query ranges over")
	fmt.Fprintln(ctx.Out, "  .apply <query>  - Show every record with its match result")
	fmt.Fprintln(ctx.Out, "  <query>         - Show the matching records")
	fmt.Fprintln(ctx.Out)

	scanner := bufio.NewScanner(ctx.In)
	for {
		fmt.Fprint(ctx.Out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		command, rest, _ := strings.Cut(line, " ")

		var err error
		switch {
		case line == "":
		case line == ".exit":
			return nil
		case line == ".help":
			fmt.Fprintln(ctx.Out, "Enter a query, or a command starting with a dot")
		case command == ".parse":
			var text string
			if text, err = parser.Normalize(rest, ctx.options().Parser); err == nil {
				fmt.Fprintln(ctx.Out, text)
			}
		case command == ".tables":
			var q *query.Query
			if q, err = query.New(rest, ctx.options()); err == nil {
				fmt.Fprintln(ctx.Out, strings.Join(q.Tables(), ", "))
			}
		case command == ".apply":
			err = ctx.execute(store, rest, cmd.Fields, true)
		case strings.HasPrefix(line, "."):
			fmt.Fprintln(ctx.Out, "Unknown command. Use .help for help.")
		default:
			err = ctx.execute(store, line, cmd.Fields, false)
		}
		if err != nil {
			fmt.Fprintf(ctx.Out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}
