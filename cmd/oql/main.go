// Command oql runs object queries against record files and stores.
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
)

// CLI is the command tree.
var CLI struct {
	Config  string `help:"Configuration file path" default:"oql.yaml" env:"OQL_CONFIG"`
	Verbose bool   `help:"Show evaluation events on stderr" short:"v"`
	Variant string `help:"Query variant (object, row or python); overrides the config"`

	Parse   ParseCmd   `cmd:"" help:"Check a query and print its normalized form"`
	Tables  TablesCmd  `cmd:"" help:"Print the collections a query ranges over"`
	Match   MatchCmd   `cmd:"" help:"Match a query against a single record"`
	Iterate IterateCmd `cmd:"" help:"Print the records of the store that match a query"`
	Apply   ApplyCmd   `cmd:"" help:"Print every record of the store with its match result"`
	Repl    ReplCmd    `cmd:"" help:"Run queries interactively"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("oql"),
		kong.Description("A restricted Python-expression query language for record collections."),
	)

	config, err := LoadConfig(CLI.Config)
	if err != nil {
		fail(err)
	}
	if CLI.Variant != "" {
		config.Variant = CLI.Variant
		if err := config.Validate(); err != nil {
			fail(err)
		}
	}

	appCtx := NewContext(config, CLI.Variant, CLI.Verbose)
	if err := ctx.Run(appCtx); err != nil {
		fail(err)
	}
}

func fail(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

