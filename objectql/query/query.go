// Package query is the entry point of the engine. A Query is parsed,
// checked and compiled once and can then be matched against any number
// of records, or run over the collections of a data source.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/annotations"
	"github.com/dsblank/object-ql/objectql/env"
	"github.com/dsblank/object-ql/objectql/eval"
	"github.com/dsblank/object-ql/objectql/parser"
)

// Query is a compiled query. It is immutable and safe for concurrent use.
type Query struct {
	text      string
	program   *eval.Program
	tables    []string
	opts      Options
	builder   *env.Builder
	collector *annotations.Collector
}

// Outcome is the result of evaluating a query against one record. A
// record whose evaluation failed or timed out does not match.
type Outcome struct {
	Matched  bool
	Value    any
	TimedOut bool
	Err      error
}

// New parses, checks and compiles text. Errors are *objectql.ParseError or
// *objectql.ValidationError.
func New(text string, opts Options) (*Query, error) {
	start := time.Now()
	collector := annotations.NewCollector(opts.Handler)
	text = strings.TrimSpace(text)

	tree, err := parser.Parse(text, opts.Parser)
	if err != nil {
		return nil, parseFailed(collector, start, text, err)
	}
	program, err := eval.Compile(tree)
	if err != nil {
		return nil, parseFailed(collector, start, text, err)
	}

	q := &Query{
		text:    text,
		program: program,
		tables:  parser.Tables(tree, opts.Schema),
		opts:    opts,
		builder: &env.Builder{
			Resolver: opts.resolver(),
			Schema:   opts.Schema,
			Names:    opts.Names,
			BindKind: opts.BindKind,
			Mapper:   opts.Mapper,
			Guarded:  opts.Parser.GuardedAttributes,
			Extras:   opts.Extras,
		},
		collector: collector,
	}

	if collector.Enabled() {
		collector.AddTiming(annotations.QueryCompiled, start, map[string]any{
			"query":  text,
			"tables": q.tables,
		})
	}
	return q, nil
}

func parseFailed(c *annotations.Collector, start time.Time, text string, err error) error {
	var perr *objectql.ParseError
	if errors.As(err, &perr) && perr.Text == "" {
		perr.Text = text
	}
	if c.Enabled() {
		c.AddTiming(annotations.ErrorQueryParsing, start, map[string]any{
			"query": text,
			"error": err,
		})
	}
	return err
}

// Text returns the query text the Query was built from.
func (q *Query) Text() string { return q.text }

// Tables returns the collections Iterate and Apply range over.
func (q *Query) Tables() []string {
	return append([]string(nil), q.tables...)
}

// Match reports whether record satisfies the query.
func (q *Query) Match(record any) bool {
	return q.MatchContext(context.Background(), record).Matched
}

// MatchContext evaluates the query against record. Evaluation errors are
// reported in the Outcome, never returned.
func (q *Query) MatchContext(ctx context.Context, record any) Outcome {
	start := time.Now()
	ctx, cancel := eval.WithDeadline(ctx, q.opts.Timeout)
	defer cancel()

	globals := q.builder.Build(ctx, record)
	res := eval.Evaluate(ctx, q.program, globals, q.opts.Timeout)

	out := Outcome{Value: res.Value, TimedOut: res.TimedOut, Err: res.Err}
	if res.Err == nil {
		out.Matched = eval.Truth(res.Value)
	}

	if q.collector.Enabled() {
		q.annotate(start, record, out)
	}
	return out
}

func (q *Query) annotate(start time.Time, record any, out Outcome) {
	data := map[string]any{"kind": env.KindOf(record)}
	if h, ok := record.(*objectql.Record); ok {
		data["handle"] = h.Handle
	}

	name := annotations.RecordEvaluated
	switch {
	case out.TimedOut:
		name = annotations.RecordTimedOut
	case out.Err != nil:
		name = annotations.RecordFailed
		data["error"] = out.Err
	default:
		data["matched"] = out.Matched
	}
	q.collector.AddTiming(name, start, data)
}

// Iterate returns the records of the data source that match, collection
// by collection in schema order. Each call starts a fresh traversal.
func (q *Query) Iterate(ctx context.Context) (*Iterator, error) {
	w, err := q.walk(ctx, "iterate")
	if err != nil {
		return nil, err
	}
	return &Iterator{w: w}, nil
}

// Apply returns one Result per record of the data source, matched or not,
// in the order Iterate visits them.
func (q *Query) Apply(ctx context.Context) (*ResultIterator, error) {
	w, err := q.walk(ctx, "apply")
	if err != nil {
		return nil, err
	}
	return &ResultIterator{w: w}, nil
}

func (q *Query) walk(ctx context.Context, mode string) (*walker, error) {
	if q.opts.Source == nil {
		return nil, fmt.Errorf("%s %q: %w", mode, q.text, objectql.ErrConfiguration)
	}
	if q.collector.Enabled() {
		q.collector.Add(annotations.Event{
			Name:  annotations.IterateBegin,
			Start: time.Now(),
			End:   time.Now(),
			Data:  map[string]any{"mode": mode, "tables": q.tables},
		})
	}
	return &walker{q: q, ctx: ctx, start: time.Now()}, nil
}
