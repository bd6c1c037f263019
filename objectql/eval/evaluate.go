package eval

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout is the wall-clock budget of one evaluation.
const DefaultTimeout = time.Second

// Result is the outcome of one evaluation. A failed or timed-out
// evaluation has Value false; Err holds the cause.
type Result struct {
	Value    any
	TimedOut bool
	Err      error
}

// Evaluate runs p against globals under its own deadline. A timeout of
// zero or less means DefaultTimeout. Evaluation never panics and never
// outlives the deadline: a function that blocks past it is abandoned and
// the result reports TimedOut.
func Evaluate(ctx context.Context, p *Program, globals map[string]any, timeout time.Duration) Result {
	ctx, cancel := WithDeadline(ctx, timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- p.evaluate(ctx, globals)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return failed(ctx.Err())
	}
}

// WithDeadline derives the context one evaluation runs under. Functions
// bound into the environment that block (lookups hitting a data source)
// should be built on this context so they are cancelled at the deadline.
func WithDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *Program) evaluate(ctx context.Context, globals map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	v, err := p.Run(ctx, globals)
	if err != nil {
		return failed(err)
	}
	return Result{Value: v}
}

func failed(err error) Result {
	return Result{
		Value:    false,
		TimedOut: errors.Is(err, context.DeadlineExceeded),
		Err:      err,
	}
}
