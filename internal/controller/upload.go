package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUploadInFlight rejects a new file while another upload is running.
	ErrUploadInFlight = errors.New("upload already in progress")
	// ErrDisallowedType rejects files outside the extension allow-list.
	ErrDisallowedType = errors.New("file type not allowed")
	// ErrFileTooLarge rejects files above the size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUploadRejected is reported when the uploader declines a file.
	ErrUploadRejected = errors.New("upload not accepted")
)

// UploadStatus is the lifecycle state of an upload session.
type UploadStatus string

const (
	UploadIdle      UploadStatus = "idle"
	UploadUploading UploadStatus = "uploading"
	UploadComplete  UploadStatus = "complete"
)

// FileRef is the handle of a dropped or selected file. Only its metadata is
// ever inspected.
type FileRef struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// Receipt is the uploader's answer for one file.
type Receipt struct {
	Accepted bool `json:"accepted"`
}

// Uploader stores a file somewhere.
type Uploader interface {
	Upload(ctx context.Context, file FileRef) (Receipt, error)
}

// Policy is the local validation applied before an upload starts.
type Policy struct {
	Enforce           bool
	AllowedExtensions []string
	MaxBytes          int64
}

// DefaultPolicy accepts .py, .js, .ts and .zip files up to 10 MiB.
func DefaultPolicy() Policy {
	return Policy{
		Enforce:           true,
		AllowedExtensions: []string{".py", ".js", ".ts", ".zip"},
		MaxBytes:          10 << 20,
	}
}

// Validate checks f against the policy.
func (p Policy) Validate(f FileRef) error {
	if !p.Enforce {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	allowed := false
	for _, a := range p.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q", ErrDisallowedType, f.Name)
	}
	if p.MaxBytes > 0 && f.Size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, f.Size, p.MaxBytes)
	}
	return nil
}

// UploadState is the state of the upload page.
type UploadState struct {
	DragActive bool         `json:"drag_active"`
	Status     UploadStatus `json:"status"`
	File       *FileRef     `json:"file,omitempty"`
	Error      string       `json:"error,omitempty"`
	Generation uint64       `json:"generation"`
}

// Directive is a browser-side effect the client must apply for an event.
type Directive uint8

const (
	// DirectivePreventDefault suppresses the browser's default handling,
	// which for drag-over and drop would navigate to the dropped file.
	DirectivePreventDefault Directive = 1 << iota
	// DirectiveStopPropagation keeps the event from reaching parent targets.
	DirectiveStopPropagation
	// DirectiveOpenPicker clicks the hidden file input.
	DirectiveOpenPicker
)

// Has reports whether d includes flag.
func (d Directive) Has(flag Directive) bool {
	return d&flag != 0
}

// Names lists the set directives for the wire.
func (d Directive) Names() []string {
	names := []string{}
	if d.Has(DirectivePreventDefault) {
		names = append(names, "prevent_default")
	}
	if d.Has(DirectiveStopPropagation) {
		names = append(names, "stop_propagation")
	}
	if d.Has(DirectiveOpenPicker) {
		names = append(names, "open_picker")
	}
	return names
}

// UploadEventKind identifies an upload event.
type UploadEventKind int

const (
	UploadDragEnter UploadEventKind = iota
	UploadDragOver
	UploadDragLeave
	UploadDrop
	UploadSelect
	UploadPickerClick
	UploadSucceeded
	UploadFailed
	UploadResetElapsed
)

// UploadEvent is an input to ReduceUpload.
type UploadEvent struct {
	Kind       UploadEventKind
	Files      []FileRef
	Err        error
	Generation uint64
}

// Transition is the result of ReduceUpload.
type Transition struct {
	State      UploadState
	Directives Directive
	// Begin is set when the event starts an upload of that file.
	Begin *FileRef
	// ScheduleReset is set when the Complete state was just entered.
	ScheduleReset bool
	// Rejected carries the reason a file was refused.
	Rejected error
}

const dragDirectives = DirectivePreventDefault | DirectiveStopPropagation

// ReduceUpload applies ev to s under policy.
func ReduceUpload(s UploadState, ev UploadEvent, policy Policy) Transition {
	t := Transition{State: s}

	switch ev.Kind {
	case UploadDragEnter, UploadDragOver:
		t.Directives = dragDirectives
		if s.Status != UploadUploading {
			t.State.DragActive = true
		}

	case UploadDragLeave:
		t.Directives = dragDirectives
		t.State.DragActive = false

	case UploadDrop:
		t.Directives = dragDirectives
		t.State.DragActive = false
		if len(ev.Files) > 0 {
			beginUpload(&t, ev.Files[0], policy)
		}

	case UploadSelect:
		if len(ev.Files) > 0 {
			beginUpload(&t, ev.Files[0], policy)
		}

	case UploadPickerClick:
		t.Directives = DirectiveOpenPicker

	case UploadSucceeded:
		if s.Status != UploadUploading || ev.Generation != s.Generation {
			break
		}
		t.State.Status = UploadComplete
		t.State.File = nil
		t.ScheduleReset = true

	case UploadFailed:
		if s.Status != UploadUploading || ev.Generation != s.Generation {
			break
		}
		t.State.Status = UploadIdle
		t.State.File = nil
		t.State.Error = "upload failed"
		if ev.Err != nil {
			t.State.Error = ev.Err.Error()
		}

	case UploadResetElapsed:
		if s.Status != UploadComplete || ev.Generation != s.Generation {
			break
		}
		t.State.Status = UploadIdle
		t.State.Error = ""
	}

	return t
}

func beginUpload(t *Transition, f FileRef, policy Policy) {
	if t.State.Status == UploadUploading {
		t.Rejected = ErrUploadInFlight
		return
	}
	if err := policy.Validate(f); err != nil {
		t.Rejected = err
		t.State.Error = err.Error()
		return
	}
	file := f
	t.State.Status = UploadUploading
	t.State.DragActive = false
	t.State.File = &file
	t.State.Error = ""
	t.State.Generation++
	t.Begin = &file
}

// UploadController drives an UploadState for one page view.
type UploadController struct {
	uploader   Uploader
	policy     Policy
	resetDelay time.Duration
	logger     *slog.Logger
	onChange   func(UploadState)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  UploadState
	closed bool
}

// NewUploadController creates a controller in the Idle state. resetDelay is
// how long the Complete state is shown. onChange follows the same rules as
// for NewRunController.
func NewUploadController(uploader Uploader, policy Policy, resetDelay time.Duration, logger *slog.Logger, onChange func(UploadState)) *UploadController {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &UploadController{
		uploader:   uploader,
		policy:     policy,
		resetDelay: resetDelay,
		logger:     logger,
		onChange:   onChange,
		ctx:        ctx,
		cancel:     cancel,
		state:      UploadState{Status: UploadIdle},
	}
}

// State returns a snapshot of the current state.
func (c *UploadController) State() UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.File != nil {
		f := *s.File
		s.File = &f
	}
	return s
}

// DragEnter marks the drop zone as hovered.
func (c *UploadController) DragEnter() (Directive, error) {
	return c.dispatch(UploadEvent{Kind: UploadDragEnter})
}

// DragOver keeps the drop zone hovered. The returned directives always
// include DirectivePreventDefault.
func (c *UploadController) DragOver() (Directive, error) {
	return c.dispatch(UploadEvent{Kind: UploadDragOver})
}

// DragLeave clears the hover state.
func (c *UploadController) DragLeave() (Directive, error) {
	return c.dispatch(UploadEvent{Kind: UploadDragLeave})
}

// Drop uploads the first of files; the rest are ignored.
func (c *UploadController) Drop(files []FileRef) (Directive, error) {
	return c.dispatch(UploadEvent{Kind: UploadDrop, Files: files})
}

// Select uploads the first file picked in the file dialog.
func (c *UploadController) Select(files []FileRef) error {
	_, err := c.dispatch(UploadEvent{Kind: UploadSelect, Files: files})
	return err
}

// PickerClick delegates a click on the drop zone to the hidden file input.
func (c *UploadController) PickerClick() (Directive, error) {
	return c.dispatch(UploadEvent{Kind: UploadPickerClick})
}

// Close tears the controller down, cancelling the upload and the pending
// reset.
func (c *UploadController) Close() {
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

func (c *UploadController) dispatch(ev UploadEvent) (Directive, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrSessionClosed
	}

	t := ReduceUpload(c.state, ev, c.policy)
	if t.Rejected != nil {
		if errors.Is(t.Rejected, ErrUploadInFlight) {
			c.logger.Warn("Upload rejected, another upload is in flight", "generation", c.state.Generation)
		} else {
			c.logger.Info("Upload rejected by policy", "error", t.Rejected)
		}
	}
	c.commitLocked(t)
	return t.Directives, t.Rejected
}

func (c *UploadController) apply(ev UploadEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.commitLocked(ReduceUpload(c.state, ev, c.policy))
}

func (c *UploadController) commitLocked(t Transition) {
	if !sameUploadState(c.state, t.State) {
		c.state = t.State
		if c.onChange != nil {
			c.onChange(c.state)
		}
	}
	if t.Begin != nil {
		c.startLocked(c.state.Generation, *t.Begin)
	}
	if t.ScheduleReset {
		c.scheduleResetLocked(c.state.Generation)
	}
}

func (c *UploadController) startLocked(gen uint64, file FileRef) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.logger.Info("Upload started", "generation", gen, "file", file.Name, "size", file.Size)
		receipt, err := c.uploader.Upload(c.ctx, file)
		if err == nil && !receipt.Accepted {
			err = ErrUploadRejected
		}
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("Upload failed", "generation", gen, "file", file.Name, "error", err)
			}
			c.apply(UploadEvent{Kind: UploadFailed, Err: err, Generation: gen})
			return
		}
		c.logger.Info("Upload completed", "generation", gen, "file", file.Name)
		c.apply(UploadEvent{Kind: UploadSucceeded, Generation: gen})
	}()
}

func (c *UploadController) scheduleResetLocked(gen uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := sleep(c.ctx, c.resetDelay); err != nil {
			return
		}
		c.apply(UploadEvent{Kind: UploadResetElapsed, Generation: gen})
	}()
}

func sameUploadState(a, b UploadState) bool {
	if a.DragActive != b.DragActive || a.Status != b.Status || a.Error != b.Error || a.Generation != b.Generation {
		return false
	}
	if (a.File == nil) != (b.File == nil) {
		return false
	}
	return a.File == nil || *a.File == *b.File
}
