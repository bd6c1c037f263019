// Command build-testdb loads YAML record files into a Badger or SQLite
// store for use with oql.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/storage"
)

var CLI struct {
	Backend string   `help:"Store backend: badger or sqlite" default:"badger" enum:"badger,sqlite"`
	Output  string   `help:"Store path" short:"o" default:"testdata.db"`
	Records []string `arg:"" help:"YAML record files" type:"existingfile"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("build-testdb"),
		kong.Description("Load YAML record files into a record store."),
	)

	if err := build(context.Background(), storage.Backend(CLI.Backend), CLI.Output, CLI.Records); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Failed to build database: %v\n", err)
		os.Exit(1)
	}

	color.New(color.FgGreen).Println("\n✅ Done! Use this store with:")
	fmt.Printf("   OQL_STORE=%s:%s oql iterate 'person'\n", CLI.Backend, CLI.Output)
}

func build(ctx context.Context, backend storage.Backend, output string, files []string) error {
	fmt.Printf("Building %s store: %s\n", backend, output)

	store, err := storage.Open(backend, output, objectql.DefaultSchema)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, file := range files {
		collections, err := storage.LoadRecords(file)
		if err != nil {
			return err
		}
		if err := collections.WriteTo(ctx, store); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		fmt.Printf("  %s: %d records\n", file, collections.Count())
		for _, name := range collections.Names() {
			fmt.Printf("    %-12s %d\n", name, len(collections[name]))
		}
	}
	return nil
}
