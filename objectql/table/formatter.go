// Package table renders query results as markdown tables.
package table

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/env"
	"github.com/dsblank/object-ql/objectql/eval"
	"github.com/dsblank/object-ql/objectql/query"
)

// Formatter provides utilities for formatting records as tables
type Formatter struct {
	// Fields are the record fields shown after kind and handle.
	Fields []string
	// MaxWidth is the maximum width for a column
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
}

// NewFormatter creates a new formatter showing fields.
func NewFormatter(fields ...string) *Formatter {
	return &Formatter{
		Fields:         fields,
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatRecords formats the records of an Iterate traversal.
func (f *Formatter) FormatRecords(records []any) string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = f.row(r)
	}
	return f.formatTable(f.headers(), rows)
}

// FormatResults formats the results of an Apply traversal, one row per
// record with its outcome.
func (f *Formatter) FormatResults(results []query.Result) string {
	headers := append(f.headers(), "matched")
	rows := make([][]string, len(results))
	for i, res := range results {
		outcome := fmt.Sprint(res.Matched)
		switch {
		case res.TimedOut:
			outcome = "timed out"
		case res.Err != nil:
			outcome = "error: " + res.Err.Error()
		}
		rows[i] = append(f.row(res.Record), f.truncate(outcome))
	}
	return f.formatTable(headers, rows)
}

func (f *Formatter) headers() []string {
	return append([]string{"kind", "handle"}, f.Fields...)
}

func (f *Formatter) row(record any) []string {
	handle := ""
	if r, ok := record.(*objectql.Record); ok {
		handle = r.Handle
	}
	row := []string{env.KindOf(record), handle}
	for _, field := range f.Fields {
		row = append(row, f.truncate(f.formatValue(eval.GetAttr(record, field))))
	}
	return row
}

// formatTable formats headers and rows as a markdown table
func (f *Formatter) formatTable(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", headers)
	}

	tableString := &strings.Builder{}

	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return tableString.String()
}

// formatValue converts a field value to its display form
func (f *Formatter) formatValue(val any) string {
	switch {
	case objectql.IsNotFound(val):
		return ""
	case val == nil:
		return "None"
	}
	if r, ok := val.(*objectql.Record); ok && r.Handle != "" {
		return r.Kind() + ":" + r.Handle
	}
	return eval.Str(eval.Normalize(val))
}

func (f *Formatter) truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if f.MaxWidth <= 0 || len([]rune(s)) <= f.MaxWidth {
		return s
	}
	runes := []rune(s)
	keep := f.MaxWidth - len([]rune(f.TruncateString))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + f.TruncateString
}
