package llmrunner

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/marcusdietz/ralph/internal/corerr"
)

// Pool bounds the number of concurrent runner invocations the process
// will make, regardless of how many workers are asking for one — the
// process-wide concurrency cap spec §5 requires.
type Pool struct {
	factory Factory
	sem     *semaphore.Weighted
}

// NewPool returns a Pool that allows at most maxConcurrent invocations in
// flight at a time.
func NewPool(factory Factory, maxConcurrent int64) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Pool{factory: factory, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Acquire blocks until a concurrency slot is free (or ctx is done), then
// returns a Runner and a release function the caller must call exactly
// once when the invocation finishes.
func (p *Pool) Acquire(ctx context.Context) (Runner, func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, corerr.Wrap(corerr.Internal, "acquire runner slot", err)
	}
	runner := p.factory.NewRunner()
	return runner, func() { p.sem.Release(1) }, nil
}

// RetryTransient retries fn with exponential backoff as long as it
// returns a corerr error of kind llm_transient, following the teacher's
// general retry shape (internal/agent/retry.go) but built on
// cenkalti/backoff/v4 per the ambient stack decision. A llm_fatal error,
// or any error past maxElapsed, is returned immediately.
func RetryTransient(ctx context.Context, maxElapsed backoff.BackOff, fn func() error) error {
	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if corerr.Is(err, corerr.LLMTransient) {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(maxElapsed, ctx)); err != nil {
		return fmt.Errorf("llm invocation failed after retries: %w", err)
	}
	return nil
}
