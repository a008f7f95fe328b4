package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aftab97/qr-inventory-scanner/internal/imaging"
)

// SyntheticSource serves a scripted queue of frames without touching any
// hardware. It drives the scan session in tests and in the headless demo
// binary: each Grab pops the next queued frame, and an empty queue is a
// skipped tick just like a slow camera.
type SyntheticSource struct {
	torchCapable bool

	mu             sync.Mutex
	queue          []*imaging.Frame
	isOpen         bool
	seq            uint64
	framesCaptured uint64
	framesSkipped  uint64
	torchOn        bool
	torchToggles   []bool
	opens          int
	closes         int
}

// NewSyntheticSource creates a source that will serve the given frames in
// order. Frames may also be pushed after creation.
func NewSyntheticSource(frames ...*imaging.Frame) *SyntheticSource {
	s := &SyntheticSource{}
	s.Push(frames...)
	return s
}

// WithTorch declares torch support and returns the source for chaining.
func (s *SyntheticSource) WithTorch() *SyntheticSource {
	s.torchCapable = true
	return s
}

// Push appends frames to the serving queue. Frames missing capture
// metadata get a sequence number and trace id assigned.
func (s *SyntheticSource) Push(frames ...*imaging.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range frames {
		if f == nil {
			// A nil entry scripts a skipped tick.
			s.queue = append(s.queue, nil)
			continue
		}
		s.seq++
		if f.Seq == 0 {
			f.Seq = s.seq
		}
		if f.TraceID == "" {
			f.TraceID = uuid.New().String()
		}
		s.queue = append(s.queue, f)
	}
}

// Open marks the source as serving.
func (s *SyntheticSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isOpen {
		return fmt.Errorf("capture: source already open")
	}
	s.isOpen = true
	s.opens++
	slog.Debug("capture: synthetic source opened", "queued", len(s.queue))
	return nil
}

// Grab pops the next queued frame. Nil when the queue is empty or the
// source is closed.
func (s *SyntheticSource) Grab() *imaging.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOpen || len(s.queue) == 0 {
		s.framesSkipped++
		return nil
	}
	f := s.queue[0]
	s.queue = s.queue[1:]
	if f == nil {
		s.framesSkipped++
		return nil
	}
	s.framesCaptured++
	return f
}

// TorchSupported reports the scripted torch capability.
func (s *SyntheticSource) TorchSupported() bool {
	return s.torchCapable
}

// SetTorch records the toggle. Unsupported torch is a silent no-op, same
// contract as real hardware.
func (s *SyntheticSource) SetTorch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.torchCapable {
		return nil
	}
	s.torchOn = on
	s.torchToggles = append(s.torchToggles, on)
	return nil
}

// TorchOn reports the current scripted torch state.
func (s *SyntheticSource) TorchOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torchOn
}

// TorchToggles returns the recorded toggle history.
func (s *SyntheticSource) TorchToggles() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.torchToggles))
	copy(out, s.torchToggles)
	return out
}

// Close marks the source closed. Idempotent; Opens and Closes are
// counted so tests can assert release ordering.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOpen {
		return nil
	}
	s.isOpen = false
	s.closes++
	return nil
}

// OpenCount returns how many times Open succeeded.
func (s *SyntheticSource) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// CloseCount returns how many times Close released the source.
func (s *SyntheticSource) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Stats returns a snapshot of the scripted counters.
func (s *SyntheticSource) Stats() SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var w, h int
	if len(s.queue) > 0 && s.queue[0] != nil {
		w, h = s.queue[0].Width, s.queue[0].Height
	}
	return SourceStats{
		FramesCaptured: s.framesCaptured,
		FramesSkipped:  s.framesSkipped,
		Width:          w,
		Height:         h,
		IsOpen:         s.isOpen,
	}
}
