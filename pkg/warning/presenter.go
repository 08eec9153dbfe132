// Package warning presents the "too close to the screen" warning on a
// display surface. The presenter only tracks visibility; the threshold
// decision belongs to the caller.
package warning

import (
	"fmt"
	"log/slog"
	"sync"
)

// Surface is where the warning is drawn.
type Surface interface {
	// Attach adds the warning view to the display.
	Attach() error

	// SetText updates the distance label on an attached view.
	SetText(text string) error

	// Detach removes the warning view.
	Detach() error
}

// Visibility is the presenter state.
type Visibility struct {
	Shown    bool    `json:"shown"`
	Distance float64 `json:"distance_cm,omitempty"`
	Text     string  `json:"text,omitempty"`
}

// FormatDistance renders a distance for the warning label, e.g. "20.0 cm".
func FormatDistance(cm float64) string {
	return fmt.Sprintf("%.1f cm", cm)
}

// Presenter shows and hides the warning. The surface is attached at most once
// per shown period and detached only when shown.
type Presenter struct {
	surface Surface
	logger  *slog.Logger

	mu  sync.Mutex
	vis Visibility

	// OnChange, if set, is called with the new visibility after every
	// successful Show or Hide. It runs with the presenter lock held.
	OnChange func(Visibility)
}

// NewPresenter creates a hidden presenter.
func NewPresenter(surface Surface, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		surface: surface,
		logger:  logger.With("component", "warning"),
	}
}

// Show displays the warning with the given distance, attaching the surface
// first if hidden.
func (p *Presenter) Show(cm float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := FormatDistance(cm)
	if !p.vis.Shown {
		if err := p.surface.Attach(); err != nil {
			return fmt.Errorf("warning: attach: %w", err)
		}
		p.vis.Shown = true
		p.logger.Info("warning shown", "distance_cm", cm)
	}
	if err := p.surface.SetText(text); err != nil {
		return fmt.Errorf("warning: set text: %w", err)
	}
	p.vis.Distance = cm
	p.vis.Text = text
	p.notify()
	return nil
}

// Hide removes the warning. It is a no-op when already hidden.
func (p *Presenter) Hide() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.vis.Shown {
		return nil
	}
	if err := p.surface.Detach(); err != nil {
		return fmt.Errorf("warning: detach: %w", err)
	}
	p.vis = Visibility{}
	p.logger.Info("warning hidden")
	p.notify()
	return nil
}

// Visibility returns the current state.
func (p *Presenter) Visibility() Visibility {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vis
}

func (p *Presenter) notify() {
	if p.OnChange != nil {
		p.OnChange(p.vis)
	}
}
