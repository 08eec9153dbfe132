// Package lifecycle adapts the coarse lifecycle of a background host process
// (created, start command received, destroyed) into the continuous,
// monotonic phase that the capture resource binds against.
//
// The camera stack was built to follow an interactive, foreground lifecycle.
// A background monitor has no such lifecycle, so the Bridge synthesizes one
// from the three host notifications and publishes every phase change to its
// subscribers before the notifying call returns.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrInvalidTransition is returned when a host notification arrives out of
// order. It signals a programming error in the host and should not be
// swallowed.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// Phase is an ordered lifecycle phase.
type Phase int

const (
	// PhaseInitialized is the phase before the host reported creation.
	PhaseInitialized Phase = iota
	// PhaseCreated: host process created.
	PhaseCreated
	// PhaseStarted: host received its start command. Capture may bind.
	PhaseStarted
	// PhaseDestroyed: host destroyed. Terminal.
	PhaseDestroyed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInitialized:
		return "INITIALIZED"
	case PhaseCreated:
		return "CREATED"
	case PhaseStarted:
		return "STARTED"
	case PhaseDestroyed:
		return "DESTROYED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// AtLeast reports whether p has reached min.
func (p Phase) AtLeast(min Phase) bool {
	return p >= min
}

// Observer receives phase changes.
type Observer func(Phase)

// Owner is the read side of a lifecycle, as consumed by resources that bind
// to it.
type Owner interface {
	// Phase returns the current phase.
	Phase() Phase

	// Subscribe registers fn, immediately replays the current phase to it and
	// returns a function that removes the subscription.
	Subscribe(fn Observer) (unsubscribe func())
}

// Bridge translates host notifications into phases.
type Bridge struct {
	logger *slog.Logger

	// publishMu serializes notifications so subscribers observe phases in
	// order; mu guards the fields below and is never held while calling out.
	publishMu sync.Mutex
	mu        sync.Mutex
	phase     Phase
	observers map[int]Observer
	nextID    int
}

// NewBridge creates a bridge in PhaseInitialized.
func NewBridge(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		logger:    logger.With("component", "lifecycle"),
		observers: make(map[int]Observer),
	}
}

// Phase returns the current phase.
func (b *Bridge) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Subscribe registers fn and replays the current phase to it.
func (b *Bridge) Subscribe(fn Observer) func() {
	b.publishMu.Lock()
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.observers[id] = fn
	current := b.phase
	b.mu.Unlock()

	fn(current)
	b.publishMu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

// OnHostCreate reports that the host process was created.
func (b *Bridge) OnHostCreate() error {
	return b.advance(PhaseCreated, func(from Phase) bool {
		return from == PhaseInitialized
	})
}

// OnHostStart reports that the host received a start command. A repeated
// start command while already started is accepted and publishes nothing.
func (b *Bridge) OnHostStart() error {
	b.publishMu.Lock()
	b.mu.Lock()
	already := b.phase == PhaseStarted
	b.mu.Unlock()
	b.publishMu.Unlock()
	if already {
		return nil
	}

	return b.advance(PhaseStarted, func(from Phase) bool {
		return from == PhaseCreated
	})
}

// OnHostStop reports that the host stopped itself. A background host does not
// come back from a stop, so this is equivalent to OnHostDestroy.
func (b *Bridge) OnHostStop() error {
	return b.OnHostDestroy()
}

// OnHostDestroy reports that the host process is being destroyed.
func (b *Bridge) OnHostDestroy() error {
	return b.advance(PhaseDestroyed, func(from Phase) bool {
		return from == PhaseCreated || from == PhaseStarted
	})
}

// Close guarantees DESTROYED has been published to every subscriber and
// drops all subscriptions. It is safe to call more than once.
func (b *Bridge) Close() {
	if b.Phase() != PhaseDestroyed {
		b.forceDestroy()
	}

	b.mu.Lock()
	b.observers = make(map[int]Observer)
	b.mu.Unlock()
}

func (b *Bridge) forceDestroy() {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	if b.phase == PhaseDestroyed {
		b.mu.Unlock()
		return
	}
	from := b.phase
	b.phase = PhaseDestroyed
	observers := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Debug("lifecycle closed before destroy", "from", from)
	for _, fn := range observers {
		fn(PhaseDestroyed)
	}
}

func (b *Bridge) advance(to Phase, allowed func(from Phase) bool) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	from := b.phase
	if !allowed(from) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	b.phase = to
	observers := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Debug("lifecycle phase changed", "from", from, "to", to)
	for _, fn := range observers {
		fn(to)
	}
	return nil
}

func (b *Bridge) snapshotLocked() []Observer {
	out := make([]Observer, 0, len(b.observers))
	for i := 0; i < b.nextID; i++ {
		if fn, ok := b.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

var _ Owner = (*Bridge)(nil)
