package capture

import (
	"sync"
	"time"
)

// Frame is a captured image owned by the analysis pipeline until Release is
// called. The source cannot deliver the next frame to the analyzer until the
// current one is released.
type Frame struct {
	// Data is the JPEG-encoded image.
	Data []byte

	Width  int
	Height int

	Timestamp time.Time

	// Seq is the per-activation sequence number.
	Seq uint64

	// Generation is the capture generation the frame was issued under.
	Generation uint64

	current func(gen uint64) bool
	release []func()
	once    sync.Once
}

// NewFrame builds a standalone frame that is always current. release, if not
// nil, runs exactly once on the first Release call.
func NewFrame(data []byte, width, height int, release func()) *Frame {
	f := &Frame{
		Data:      data,
		Width:     width,
		Height:    height,
		Timestamp: time.Now(),
	}
	if release != nil {
		f.release = append(f.release, release)
	}
	return f
}

// Release returns the frame to its source. Only the first call has any
// effect.
func (f *Frame) Release() {
	f.once.Do(func() {
		for _, fn := range f.release {
			fn()
		}
	})
}

// Current reports whether the generation the frame was issued under is still
// live. Results computed from a non-current frame must be discarded.
func (f *Frame) Current() bool {
	if f.current == nil {
		return true
	}
	return f.current(f.Generation)
}

func (f *Frame) onRelease(fn func()) {
	f.release = append(f.release, fn)
}
