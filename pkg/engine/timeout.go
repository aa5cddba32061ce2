package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// outcome carries one evaluation back from its goroutine.
type outcome struct {
	gen    uint64
	result *Result
	errs   []EvalError
	err    error
}

// EvaluateContext is Evaluate bounded by ctx as well as by the engine's
// timeout. zygomys cannot be interrupted, so an abandoned evaluation keeps
// running in the background and its result is dropped.
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*Result, []EvalError, error) {
	gen := e.generation.Add(1)

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go e.run(source, gen, done)
	return e.await(ctx, done, timeout)
}

// run evaluates source and reports on done, turning a panic into a fatal
// error.
func (e *Engine) run(source string, gen uint64, done chan<- outcome) {
	defer func() {
		if r := recover(); r != nil {
			done <- outcome{gen: gen, err: errors.Errorf("panic during evaluation: %v", r)}
		}
	}()
	res, errs, err := e.evaluate(source)
	done <- outcome{gen: gen, result: res, errs: errs, err: err}
}

// await waits for the outcome on done. An outcome from an evaluation older
// than the engine's latest one is stale and is discarded.
func (e *Engine) await(ctx context.Context, done <-chan outcome, timeout time.Duration) (*Result, []EvalError, error) {
	select {
	case o := <-done:
		if o.gen != e.generation.Load() {
			return nil, nil, errors.New("evaluation superseded by newer request")
		}
		return o.result, o.errs, o.err

	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil, errors.Errorf("evaluation timed out after %s", timeout)
		}
		return nil, nil, errors.Wrap(ctx.Err(), "evaluation canceled")
	}
}
