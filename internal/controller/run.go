// Package controller implements the interactive demo and upload controllers.
//
// Each controller keeps its state in an explicit value and moves it only
// through a pure reducer. Simulated or real jobs run on goroutines and report
// back through the same reducer, tagged with the generation that started them,
// so completions that arrive after a clear or a teardown are dropped.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// ErrSessionClosed is returned by operations on a torn-down controller.
var ErrSessionClosed = errors.New("session closed")

// ErrInputTooLarge is reported when source text exceeds the configured bound.
var ErrInputTooLarge = errors.New("input too large")

// EncodedInputLimit bounds a JSON message that carries up to maxInput bytes
// of source text. JSON escaping expands a byte to at most six.
func EncodedInputLimit(maxInput int64) int64 {
	return 6*maxInput + 4<<10
}

// RunStatus is the lifecycle state of a run session.
type RunStatus string

const (
	RunIdle       RunStatus = "idle"
	RunProcessing RunStatus = "processing"
	RunDone       RunStatus = "done"
)

// RunState is the state of the agent demo page.
type RunState struct {
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Generation uint64    `json:"generation"`
}

// CanRun reports whether the run control should be enabled.
func (s RunState) CanRun() bool {
	return s.Status != RunProcessing && strings.TrimSpace(s.Input) != ""
}

// RunEventKind identifies a run event.
type RunEventKind int

const (
	RunEdit RunEventKind = iota
	RunSubmit
	RunClear
	RunSucceeded
	RunFailed
)

// RunEvent is an input to ReduceRun.
type RunEvent struct {
	Kind       RunEventKind
	Input      string
	Output     string
	Err        error
	Generation uint64
}

// ReduceRun applies ev to s. The boolean result is true when the event starts
// a new conversion job for the returned generation.
func ReduceRun(s RunState, ev RunEvent) (RunState, bool) {
	switch ev.Kind {
	case RunEdit:
		s.Input = ev.Input
		return s, false

	case RunSubmit:
		if strings.TrimSpace(ev.Input) == "" || s.Status == RunProcessing {
			return s, false
		}
		s.Input = ev.Input
		s.Output = ""
		s.Error = ""
		s.Status = RunProcessing
		s.Generation++
		return s, true

	case RunClear:
		s.Input = ""
		s.Output = ""
		s.Error = ""
		s.Status = RunIdle
		s.Generation++
		return s, false

	case RunSucceeded:
		if s.Status != RunProcessing || ev.Generation != s.Generation {
			return s, false
		}
		s.Output = ev.Output
		s.Status = RunDone
		return s, false

	case RunFailed:
		if s.Status != RunProcessing || ev.Generation != s.Generation {
			return s, false
		}
		s.Status = RunIdle
		s.Error = "conversion failed"
		if ev.Err != nil {
			s.Error = ev.Err.Error()
		}
		return s, false
	}
	return s, false
}

// Converter turns source code into converted code.
type Converter interface {
	Convert(ctx context.Context, source string) (string, error)
}

// Clipboard receives text copied from the output pane.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// RunController drives a RunState for one page view.
type RunController struct {
	conv     Converter
	clip     Clipboard
	logger   *slog.Logger
	onChange func(RunState)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     RunState
	cancelJob context.CancelFunc
	closed    bool
}

// NewRunController creates a controller in the Idle state. onChange, if set,
// is called with every new state while the controller lock is held; it must
// not call back into the controller.
func NewRunController(conv Converter, clip Clipboard, logger *slog.Logger, onChange func(RunState)) *RunController {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RunController{
		conv:     conv,
		clip:     clip,
		logger:   logger,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
		state:    RunState{Status: RunIdle},
	}
}

// State returns a snapshot of the current state.
func (c *RunController) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetInput records the current contents of the input pane.
func (c *RunController) SetInput(input string) {
	c.apply(RunEvent{Kind: RunEdit, Input: input})
}

// Submit starts a conversion of input. It returns false without changing
// state when input is blank, a run is already in flight, or the controller
// is closed.
func (c *RunController) Submit(input string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	prev := c.state.Status
	next, start := ReduceRun(c.state, RunEvent{Kind: RunSubmit, Input: input})
	if !start {
		if prev == RunProcessing {
			c.logger.Debug("Run rejected, conversion in flight", "generation", c.state.Generation)
		}
		return false
	}
	c.setLocked(next)
	c.startLocked(next.Generation, next.Input)
	return true
}

// Clear resets the session to Idle and supersedes any in-flight conversion.
func (c *RunController) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.cancelJob != nil {
		c.cancelJob()
		c.cancelJob = nil
	}
	next, _ := ReduceRun(c.state, RunEvent{Kind: RunClear})
	c.setLocked(next)
}

// CopyOutput writes the current output to the clipboard. It reports false
// and writes nothing when there is no output.
func (c *RunController) CopyOutput(ctx context.Context) (bool, error) {
	output := c.State().Output
	if output == "" || c.clip == nil {
		return false, nil
	}
	if err := c.clip.WriteText(ctx, output); err != nil {
		return false, err
	}
	return true, nil
}

// Close tears the controller down. Pending conversions are cancelled and any
// completion arriving afterwards is ignored.
func (c *RunController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *RunController) apply(ev RunEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	next, _ := ReduceRun(c.state, ev)
	if next == c.state {
		if ev.Kind == RunSucceeded || ev.Kind == RunFailed {
			c.logger.Debug("Dropped stale conversion result", "generation", ev.Generation, "current", c.state.Generation)
		}
		return
	}
	c.setLocked(next)
}

func (c *RunController) setLocked(next RunState) {
	c.state = next
	if c.onChange != nil {
		c.onChange(next)
	}
}

func (c *RunController) startLocked(gen uint64, input string) {
	jobCtx, cancel := context.WithCancel(c.ctx)
	c.cancelJob = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		c.logger.Info("Conversion started", "generation", gen, "input_length", len(input))
		out, err := c.conv.Convert(jobCtx, input)
		if err != nil {
			if jobCtx.Err() == nil {
				c.logger.Warn("Conversion failed", "generation", gen, "error", err)
			}
			c.apply(RunEvent{Kind: RunFailed, Err: err, Generation: gen})
			return
		}
		c.logger.Info("Conversion completed", "generation", gen, "output_length", len(out))
		c.apply(RunEvent{Kind: RunSucceeded, Output: out, Generation: gen})
	}()
}
