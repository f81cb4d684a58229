package llmrunner

import (
	"fmt"
	"sync"
)

// FakeRunner is a test double satisfying Runner, for use by packages that
// drive a worker loop without shelling out to a real CLI or API backend.
type FakeRunner struct {
	mu       sync.Mutex
	started  bool
	killed   bool
	events   []StreamEvent
	waitErr  error
	outputCh chan StreamEvent
	done     chan struct{}

	StartErr error
}

// NewFakeRunner returns a FakeRunner that emits events in order, then
// closes its output channel, once Start/StartWithOptions is called.
func NewFakeRunner(events []StreamEvent, waitErr error) *FakeRunner {
	return &FakeRunner{
		events:   events,
		waitErr:  waitErr,
		outputCh: make(chan StreamEvent, len(events)+1),
		done:     make(chan struct{}),
	}
}

var _ Runner = (*FakeRunner)(nil)

func (f *FakeRunner) Start(prompt, workDir string) error {
	return f.StartWithOptions(prompt, workDir, nil)
}

func (f *FakeRunner) StartWithOptions(prompt, workDir string, opts *StartOptions) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return fmt.Errorf("runner already started")
	}
	if f.StartErr != nil {
		f.mu.Unlock()
		return f.StartErr
	}
	f.started = true
	f.mu.Unlock()

	go func() {
		for _, ev := range f.events {
			f.outputCh <- ev
		}
		close(f.outputCh)
		close(f.done)
	}()
	return nil
}

func (f *FakeRunner) Output() <-chan StreamEvent {
	return f.outputCh
}

func (f *FakeRunner) Wait() error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return fmt.Errorf("runner not started")
	}
	f.mu.Unlock()

	<-f.done
	return f.waitErr
}

func (f *FakeRunner) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	return nil
}

func (f *FakeRunner) Killed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

func (f *FakeRunner) Stderr() string { return "" }

func (f *FakeRunner) PID() int { return 0 }

// FakeFactory returns a fixed FakeRunner from NewRunner, for wiring into a
// Pool in tests.
type FakeFactory struct {
	Events  []StreamEvent
	WaitErr error
}

var _ Factory = (*FakeFactory)(nil)

func (f *FakeFactory) NewRunner() Runner {
	return NewFakeRunner(f.Events, f.WaitErr)
}
