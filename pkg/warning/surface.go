package warning

import (
	"errors"
	"log/slog"
	"sync"
)

// LogSurface renders the warning as structured log lines. Useful on headless
// hosts.
type LogSurface struct {
	logger *slog.Logger
}

// NewLogSurface creates a log surface.
func NewLogSurface(logger *slog.Logger) *LogSurface {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSurface{logger: logger.With("surface", "log")}
}

func (s *LogSurface) Attach() error {
	s.logger.Warn("too close to the screen")
	return nil
}

func (s *LogSurface) SetText(text string) error {
	s.logger.Warn("screen distance", "text", text)
	return nil
}

func (s *LogSurface) Detach() error {
	s.logger.Info("screen distance ok")
	return nil
}

// Multi draws the warning on several surfaces. Every surface is called even
// if an earlier one fails; errors are joined.
type Multi []Surface

func (m Multi) Attach() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Attach())
	}
	return errors.Join(errs...)
}

func (m Multi) SetText(text string) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SetText(text))
	}
	return errors.Join(errs...)
}

func (m Multi) Detach() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Detach())
	}
	return errors.Join(errs...)
}

// Recorder is a surface that records calls, for tests.
type Recorder struct {
	mu      sync.Mutex
	attach  int
	detach  int
	texts   []string
	visible bool

	// AttachErr, if set, is returned by Attach.
	AttachErr error
}

func (r *Recorder) Attach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AttachErr != nil {
		return r.AttachErr
	}
	r.attach++
	r.visible = true
	return nil
}

func (r *Recorder) SetText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *Recorder) Detach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detach++
	r.visible = false
	return nil
}

// Attaches returns the number of Attach calls.
func (r *Recorder) Attaches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attach
}

// Detaches returns the number of Detach calls.
func (r *Recorder) Detaches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detach
}

// Texts returns every label set, in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

// Visible reports whether the view is attached.
func (r *Recorder) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

var (
	_ Surface = (*LogSurface)(nil)
	_ Surface = (*Recorder)(nil)
	_ Surface = Multi(nil)
)
