package proximity

import (
	"math"
	"testing"
)

func TestGate_InitialStateFar(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	if g.State() != Far {
		t.Errorf("initial state = %v, want far", g.State())
	}
}

func TestGate_NearOnCoveredSensor(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	// 3cm with a 5cm max range is NEAR.
	tr, ok := g.Feed(3, 5)
	if !ok {
		t.Fatal("expected a transition")
	}
	if tr.From != Far || tr.To != Near {
		t.Errorf("transition = %v→%v, want far→near", tr.From, tr.To)
	}
	if tr.MaxRange != 5 {
		t.Errorf("MaxRange = %v, want 5", tr.MaxRange)
	}
	if g.State() != Near {
		t.Errorf("state = %v, want near", g.State())
	}
}

func TestGate_RepeatedFarEmitsAtMostOnce(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	g.Feed(1, 5) // near

	edges := 0
	for i := 0; i < 10; i++ {
		if tr, ok := g.Feed(5, 5); ok {
			edges++
			if tr.To != Far {
				t.Errorf("edge %d to %v, want far", edges, tr.To)
			}
		}
	}
	if edges != 1 {
		t.Errorf("FAR edges = %d, want 1", edges)
	}
}

func TestGate_RepeatedFarFromInitialEmitsNothing(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	for i := 0; i < 5; i++ {
		if _, ok := g.Feed(8, 5); ok {
			t.Fatal("far readings from the initial far state must not emit")
		}
	}
}

func TestGate_BoundaryIsFar(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	if got := g.Classify(5, 5); got != Far {
		t.Errorf("Classify(5, 5) = %v, want far", got)
	}
	if got := g.Classify(4.99, 5); got != Near {
		t.Errorf("Classify(4.99, 5) = %v, want near", got)
	}
}

func TestGate_UnknownRangeUsesDefault(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	tests := []struct {
		name     string
		raw      float64
		maxRange float64
		want     State
	}{
		{"zero range", 3, 0, Near},
		{"negative range", 3, -1, Near},
		{"nan range", 3, math.NaN(), Near},
		{"inf range", 6, math.Inf(1), Far},
		{"beyond default", 6, 0, Far},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Classify(tt.raw, tt.maxRange); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.raw, tt.maxRange, got, tt.want)
			}
		})
	}
}

func TestGate_Debounce(t *testing.T) {
	g := NewGate(GateConfig{DefaultMaxRange: 5, Debounce: 3})

	if _, ok := g.Feed(1, 5); ok {
		t.Fatal("first near sample should not fire with debounce 3")
	}
	if _, ok := g.Feed(1, 5); ok {
		t.Fatal("second near sample should not fire with debounce 3")
	}
	// A far sample interrupts the streak.
	if _, ok := g.Feed(9, 5); ok {
		t.Fatal("far sample should not fire while already far")
	}
	g.Feed(1, 5)
	g.Feed(1, 5)
	tr, ok := g.Feed(1, 5)
	if !ok || tr.To != Near {
		t.Fatalf("third consecutive near sample should fire, got ok=%v to=%v", ok, tr.To)
	}
}

func TestGate_Reset(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	g.Feed(1, 5)
	g.Reset()

	if g.State() != Far {
		t.Errorf("state after reset = %v, want far", g.State())
	}
	if _, ok := g.Feed(1, 5); !ok {
		t.Error("near after reset should emit again")
	}
}

func TestState_String(t *testing.T) {
	if Near.String() != "near" || Far.String() != "far" {
		t.Errorf("String() = %q/%q", Near.String(), Far.String())
	}
}
