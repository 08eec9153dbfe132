package detection

import (
	"errors"
	"testing"
	"time"
)

func TestDetection_Geometry(t *testing.T) {
	tests := []struct {
		name       string
		det        Detection
		wantX      float64
		wantY      float64
		wantArea   float64
		wantHeight float64
	}{
		{
			name:       "centered face",
			det:        Detection{X: 220, Y: 140, W: 200, H: 200},
			wantX:      320,
			wantY:      240,
			wantArea:   40000,
			wantHeight: 200,
		},
		{
			name:       "tall box",
			det:        Detection{X: 0, Y: 0, W: 50, H: 100},
			wantX:      25,
			wantY:      50,
			wantArea:   5000,
			wantHeight: 100,
		},
		{
			name:  "degenerate box",
			det:   Detection{X: 10, Y: 10},
			wantX: 10,
			wantY: 10,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.det.Center()
			if x != tc.wantX || y != tc.wantY {
				t.Errorf("Center() = (%v, %v), want (%v, %v)", x, y, tc.wantX, tc.wantY)
			}
			if got := tc.det.Area(); got != tc.wantArea {
				t.Errorf("Area() = %v, want %v", got, tc.wantArea)
			}
			if got := tc.det.Height(); got != tc.wantHeight {
				t.Errorf("Height() = %v, want %v", got, tc.wantHeight)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig invalid: %v", err)
	}
	if err := FastConfig().Validate(); err != nil {
		t.Errorf("FastConfig invalid: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ModelPath = ""
	if cfg.Validate() == nil {
		t.Error("yunet without model path should be invalid")
	}

	cfg = DefaultConfig()
	cfg.Backend = "haar"
	if cfg.Validate() == nil {
		t.Error("unknown backend should be invalid")
	}

	cfg = DefaultConfig()
	cfg.ConfidenceThresh = 1.5
	if cfg.Validate() == nil {
		t.Error("confidence above 1 should be invalid")
	}
}

func TestFastConfig_SmallerThanDefault(t *testing.T) {
	fast, def := FastConfig(), DefaultConfig()
	if fast.MaxWidth == 0 || fast.TopK >= def.TopK {
		t.Errorf("FastConfig = %+v, expected downscaling and fewer candidates", fast)
	}
}

func TestNew_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dets, err := d.Detect([]byte("jpeg"))
	if err != nil || len(dets) != 0 {
		t.Errorf("Detect = %v, %v; want no faces", dets, err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "haar"
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestFunc(t *testing.T) {
	want := errors.New("boom")
	var f Detector = Func(func([]byte) ([]Detection, error) { return nil, want })
	if _, err := f.Detect(nil); !errors.Is(err, want) {
		t.Errorf("Detect error = %v, want %v", err, want)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestMock(t *testing.T) {
	m := NewMock(Detection{H: 200})

	dets, err := m.Detect(nil)
	if err != nil || len(dets) != 1 || dets[0].H != 200 {
		t.Fatalf("Detect = %v, %v", dets, err)
	}

	m.SetResult(nil, errors.New("model crashed"))
	if _, err := m.Detect(nil); err == nil {
		t.Error("expected scripted error")
	}

	m.SetResult(nil, nil)
	unblock := m.Block()
	done := make(chan struct{})
	go func() {
		m.Detect(nil)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Detect returned while blocked")
	case <-time.After(20 * time.Millisecond):
	}
	unblock()
	<-done

	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}
	m.Close()
	if !m.Closed() {
		t.Error("Closed() = false after Close")
	}
}
