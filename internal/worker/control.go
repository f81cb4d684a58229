package worker

import (
	"context"
	"sync"

	"github.com/marcusdietz/ralph/internal/corerr"
)

// Control manages pause/resume/stop state for one worker supervisor,
// adapted from the teacher's orchestrator-wide PauseController down to
// per-worker scope (spec §4.2 step 9: honor pause and stop at every
// suspension point).
type Control struct {
	paused  bool
	stopped bool
	reason  string

	mu   sync.Mutex
	cond *sync.Cond
}

// NewControl returns a ready-to-use Control.
func NewControl() *Control {
	c := &Control{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Pause blocks the worker's loop at its next suspension point.
func (c *Control) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.paused = true
	}
}

// Resume releases a paused worker.
func (c *Control) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.paused = false
		c.cond.Broadcast()
	}
}

// Stop signals the worker to terminate with reason. Unblocks any
// WaitIfPaused call in progress.
func (c *Control) Stop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		c.reason = reason
		c.cond.Broadcast()
	}
}

// IsPaused reports whether the worker is currently paused.
func (c *Control) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// IsStopped reports whether Stop has been called.
func (c *Control) IsStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// StopReason returns the reason passed to Stop, if any.
func (c *Control) StopReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// WaitIfPaused blocks the calling goroutine while the worker is paused,
// returning a conflict error if the worker is stopped, or the context's
// error if the context is cancelled while paused.
func (c *Control) WaitIfPaused(ctx context.Context) error {
	c.mu.Lock()
	if c.paused && !c.stopped {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-done:
			}
		}()

		for c.paused && !c.stopped {
			c.cond.Wait()
			if ctx.Err() != nil {
				close(done)
				c.mu.Unlock()
				return ctx.Err()
			}
		}
		close(done)
	}
	if c.stopped {
		reason := c.reason
		c.mu.Unlock()
		return corerr.Conflictf("worker stopped: %s", reason)
	}
	c.mu.Unlock()
	return nil
}
