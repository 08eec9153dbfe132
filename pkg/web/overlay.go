package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-screendistance/pkg/hub"
	"github.com/teslashibe/go-screendistance/pkg/warning"
)

// OverlayState is what overlay clients render.
type OverlayState struct {
	Visible bool   `json:"visible"`
	Text    string `json:"text,omitempty"`
}

// OverlaySurface is a warning surface drawn by websocket clients. Every
// change broadcasts the full overlay state; clients that join later get the
// latest state on connect.
type OverlaySurface struct {
	hub *hub.Hub

	mu    sync.Mutex
	state OverlayState
}

// NewOverlaySurface creates an overlay surface. Its hub runs under the
// server's Run.
func NewOverlaySurface(logger *slog.Logger) *OverlaySurface {
	return &OverlaySurface{hub: hub.New("overlay", logger, hub.WithRetain())}
}

func (o *OverlaySurface) Attach() error {
	return o.update(func(st *OverlayState) { st.Visible = true })
}

func (o *OverlaySurface) SetText(text string) error {
	return o.update(func(st *OverlayState) { st.Text = text })
}

func (o *OverlaySurface) Detach() error {
	return o.update(func(st *OverlayState) { *st = OverlayState{} })
}

// State returns the last broadcast state.
func (o *OverlaySurface) State() OverlayState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Clients returns the number of connected overlay clients.
func (o *OverlaySurface) Clients() int {
	return o.hub.ClientCount()
}

func (o *OverlaySurface) run(ctx context.Context) {
	o.hub.Run(ctx)
}

func (o *OverlaySurface) update(fn func(*OverlayState)) error {
	o.mu.Lock()
	fn(&o.state)
	st := o.state
	o.mu.Unlock()
	return o.hub.BroadcastJSON(st)
}

var _ warning.Surface = (*OverlaySurface)(nil)
