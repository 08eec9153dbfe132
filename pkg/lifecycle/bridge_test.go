package lifecycle

import (
	"errors"
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *recorder) observe(p Phase) {
	r.mu.Lock()
	r.phases = append(r.phases, p)
	r.mu.Unlock()
}

func (r *recorder) seen() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

func equalPhases(a, b []Phase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBridge_HappyPath(t *testing.T) {
	b := NewBridge(nil)
	var rec recorder
	b.Subscribe(rec.observe)

	for _, step := range []func() error{b.OnHostCreate, b.OnHostStart, b.OnHostDestroy} {
		if err := step(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := []Phase{PhaseInitialized, PhaseCreated, PhaseStarted, PhaseDestroyed}
	if got := rec.seen(); !equalPhases(got, want) {
		t.Errorf("observed %v, want %v", got, want)
	}
	if b.Phase() != PhaseDestroyed {
		t.Errorf("Phase() = %v, want DESTROYED", b.Phase())
	}
}

func TestBridge_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		steps func(b *Bridge) error
	}{
		{
			name:  "start before create",
			steps: func(b *Bridge) error { return b.OnHostStart() },
		},
		{
			name:  "destroy before create",
			steps: func(b *Bridge) error { return b.OnHostDestroy() },
		},
		{
			name: "create twice",
			steps: func(b *Bridge) error {
				b.OnHostCreate()
				return b.OnHostCreate()
			},
		},
		{
			name: "create after destroy",
			steps: func(b *Bridge) error {
				b.OnHostCreate()
				b.OnHostDestroy()
				return b.OnHostCreate()
			},
		},
		{
			name: "start after destroy",
			steps: func(b *Bridge) error {
				b.OnHostCreate()
				b.OnHostDestroy()
				return b.OnHostStart()
			},
		},
		{
			name: "destroy twice",
			steps: func(b *Bridge) error {
				b.OnHostCreate()
				b.OnHostDestroy()
				return b.OnHostDestroy()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.steps(NewBridge(nil))
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestBridge_RepeatedStartIsNoop(t *testing.T) {
	b := NewBridge(nil)
	var rec recorder
	b.OnHostCreate()
	b.Subscribe(rec.observe)

	if err := b.OnHostStart(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := b.OnHostStart(); err != nil {
		t.Fatalf("second start: %v", err)
	}

	want := []Phase{PhaseCreated, PhaseStarted}
	if got := rec.seen(); !equalPhases(got, want) {
		t.Errorf("observed %v, want %v", got, want)
	}
}

func TestBridge_StopIsDestroy(t *testing.T) {
	b := NewBridge(nil)
	b.OnHostCreate()
	b.OnHostStart()

	if err := b.OnHostStop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if b.Phase() != PhaseDestroyed {
		t.Errorf("Phase() = %v, want DESTROYED", b.Phase())
	}
}

func TestBridge_CloseDeliversDestroyed(t *testing.T) {
	b := NewBridge(nil)
	b.OnHostCreate()
	b.OnHostStart()

	var first, second recorder
	b.Subscribe(first.observe)
	b.Subscribe(second.observe)

	b.Close()
	b.Close()

	for i, rec := range []*recorder{&first, &second} {
		got := rec.seen()
		if len(got) == 0 || got[len(got)-1] != PhaseDestroyed {
			t.Errorf("subscriber %d last phase = %v, want DESTROYED", i, got)
		}
		if n := len(got); n != 2 {
			t.Errorf("subscriber %d saw %d phases, want 2 (replay + destroyed)", i, n)
		}
	}
}

func TestBridge_Unsubscribe(t *testing.T) {
	b := NewBridge(nil)
	var rec recorder
	unsubscribe := b.Subscribe(rec.observe)
	unsubscribe()

	b.OnHostCreate()

	if got := rec.seen(); len(got) != 1 {
		t.Errorf("observed %v after unsubscribe, want only the replay", got)
	}
}

func TestPhase_Ordering(t *testing.T) {
	if !PhaseStarted.AtLeast(PhaseCreated) {
		t.Error("STARTED should be at least CREATED")
	}
	if PhaseCreated.AtLeast(PhaseStarted) {
		t.Error("CREATED should not be at least STARTED")
	}
	if PhaseDestroyed.String() != "DESTROYED" {
		t.Errorf("String() = %q", PhaseDestroyed.String())
	}
}
