package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dsblank/object-ql/objectql/annotations"
	"github.com/dsblank/object-ql/objectql/parser"
	"github.com/dsblank/object-ql/objectql/query"
	"github.com/dsblank/object-ql/objectql/storage"
	"github.com/dsblank/object-ql/objectql/table"
)

// Context is shared by every command.
type Context struct {
	Config  *Config
	Variant string
	In      io.Reader
	Out     io.Writer
	Handler annotations.Handler

	// openStore is replaced in tests.
	openStore func() (storage.Store, error)
}

// NewContext creates the command context. Verbose attaches the colored
// event formatter to stderr.
func NewContext(config *Config, variant string, verbose bool) *Context {
	config.ApplyConstants()
	c := &Context{
		Config:    config,
		Variant:   variant,
		In:        os.Stdin,
		Out:       os.Stdout,
		openStore: config.OpenStore,
	}
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		c.Handler = formatter.Handle
	}
	return c
}

func (c *Context) options() query.Options {
	opts := c.Config.Options(c.Variant)
	opts.Handler = c.Handler
	return opts
}

func (c *Context) formatter(fields []string) *table.Formatter {
	if len(fields) == 0 {
		fields = c.Config.Fields
	}
	return table.NewFormatter(fields...)
}

// ParseCmd prints the normalized query.
type ParseCmd struct {
	Query string `arg:"" help:"Query text"`
}

// Run executes the parse command
func (cmd *ParseCmd) Run(ctx *Context) error {
	text, err := parser.Normalize(cmd.Query, ctx.options().Parser)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, text)
	return nil
}

// TablesCmd prints the collections a query ranges over.
type TablesCmd struct {
	Query string `arg:"" help:"Query text"`
}

// Run executes the tables command
func (cmd *TablesCmd) Run(ctx *Context) error {
	q, err := query.New(cmd.Query, ctx.options())
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, strings.Join(q.Tables(), "\n"))
	return nil
}

// MatchCmd matches a query against one record given as YAML.
type MatchCmd struct {
	Query  string `arg:"" help:"Query text"`
	Record string `arg:"" help:"Record as YAML, or @file to read it from a file"`
	Class  string `help:"Class of the record when it is a mapping" short:"c"`
}

// Run executes the match command
func (cmd *MatchCmd) Run(ctx *Context) error {
	record, err := parseRecordArg(cmd.Record, cmd.Class)
	if err != nil {
		return err
	}

	opts := ctx.options()
	var store storage.Store
	if ctx.Config.Records != "" || ctx.Config.Store.Path != "" {
		if store, err = ctx.openStore(); err != nil {
			return err
		}
		defer store.Close()
		opts.Source = store
	}

	q, err := query.New(cmd.Query, opts)
	if err != nil {
		return err
	}
	out := q.MatchContext(context.Background(), record)
	fmt.Fprintln(ctx.Out, out.Matched)
	return nil
}

// IterateCmd prints the matching records.
type IterateCmd struct {
	Query  string   `arg:"" help:"Query text"`
	Fields []string `help:"Record fields to show" short:"f" sep:","`
}

// Run executes the iterate command
func (cmd *IterateCmd) Run(ctx *Context) error {
	return ctx.runQuery(cmd.Query, cmd.Fields, false)
}

// ApplyCmd prints every record with its match result.
type ApplyCmd struct {
	Query  string   `arg:"" help:"Query text"`
	Fields []string `help:"Record fields to show" short:"f" sep:","`
}

// Run executes the apply command
func (cmd *ApplyCmd) Run(ctx *Context) error {
	return ctx.runQuery(cmd.Query, cmd.Fields, true)
}

func (c *Context) runQuery(text string, fields []string, apply bool) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return c.execute(store, text, fields, apply)
}

// execute runs one query over store and prints the result table with the
// elapsed time appended to the row count.
func (c *Context) execute(store storage.Store, text string, fields []string, apply bool) error {
	opts := c.options()
	opts.Source = store
	q, err := query.New(text, opts)
	if err != nil {
		return err
	}

	start := time.Now()
	var out string
	if apply {
		it, err := q.Apply(context.Background())
		if err != nil {
			return err
		}
		results, err := it.All()
		if err != nil {
			return err
		}
		out = c.formatter(fields).FormatResults(results)
	} else {
		it, err := q.Iterate(context.Background())
		if err != nil {
			return err
		}
		records, err := it.All()
		if err != nil {
			return err
		}
		out = c.formatter(fields).FormatRecords(records)
	}
	fmt.Fprint(c.Out, withTiming(out, time.Since(start)))
	return nil
}

// withTiming replaces the row count line with row count + timing
func withTiming(table string, elapsed time.Duration) string {
	lines := strings.Split(table, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], "_") && strings.HasSuffix(lines[i], "rows_") {
			rowLine := strings.TrimSuffix(lines[i], "_")
			lines[i] = rowLine + fmt.Sprintf(" (%.3fms)_", float64(elapsed.Microseconds())/1000.0)
			break
		}
	}
	return strings.Join(lines, "\n")
}
