// Package scan drives the capture-filter-decode loop.
//
// A Session owns one arm-to-result cycle: it polls the frame source at a
// fixed interval, hands each frame to the strategy runner, and delivers
// the first successful decode exactly once. The Service above it chains
// sessions into a continuous scan station.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aftab97/qr-inventory-scanner/internal/capture"
	"github.com/aftab97/qr-inventory-scanner/internal/decode"
)

// SessionState tracks where a session is in its lifecycle.
type SessionState int

const (
	// StateIdle means the session has not started yet
	StateIdle SessionState = iota
	// StateArmed means the capture loop is running
	StateArmed
	// StateTerminated means the session delivered a result or was stopped
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultScanInterval is the frame polling period. 450ms keeps CPU load
// flat on small boards while still feeling instant at the shelf.
const DefaultScanInterval = 450 * time.Millisecond

// SessionConfig configures a single scan session.
type SessionConfig struct {
	// Interval between frame polls; DefaultScanInterval when zero
	Interval time.Duration
	// OnResult receives the first successful decode. Called at most
	// once, from the capture goroutine, after the source is released.
	OnResult func(result decode.Result)
	// OnStop is called when the session ends without a result. Optional.
	OnStop func()
}

// SessionStats is a snapshot of session counters.
type SessionStats struct {
	ID             string
	State          string
	FramesScanned  uint64
	FramesSkipped  uint64
	StartedAt      time.Time
	Source         capture.SourceStats
}

// Session runs one scan cycle: armed on Start, terminated on the first
// decode hit or on Stop, whichever comes first.
//
// Lifecycle is one-way: idle -> armed -> terminated. A terminated
// session is not rearmed; the Service creates a fresh one.
type Session struct {
	id       string
	source   capture.Source
	runner   *decode.Runner
	interval time.Duration
	onResult func(decode.Result)
	onStop   func()

	mu            sync.Mutex
	state         SessionState
	cancel        context.CancelFunc
	startedAt     time.Time
	framesScanned uint64
	framesSkipped uint64

	wg sync.WaitGroup
}

// NewSession creates an idle session. Fails fast on missing
// collaborators.
func NewSession(source capture.Source, runner *decode.Runner, cfg SessionConfig) (*Session, error) {
	if source == nil {
		return nil, fmt.Errorf("scan: frame source is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("scan: strategy runner is required")
	}
	if cfg.OnResult == nil {
		return nil, fmt.Errorf("scan: result callback is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultScanInterval
	}

	return &Session{
		id:       uuid.New().String(),
		source:   source,
		runner:   runner,
		interval: cfg.Interval,
		onResult: cfg.OnResult,
		onStop:   cfg.OnStop,
		state:    StateIdle,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the source and arms the capture loop. Only valid from
// idle; a failed source open leaves the session idle so the caller can
// retry with a fresh session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("scan: cannot start session in state %s", state)
	}
	s.mu.Unlock()

	if err := s.source.Open(ctx); err != nil {
		return fmt.Errorf("scan: failed to open frame source: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.state = StateArmed
	s.cancel = cancel
	s.startedAt = time.Now()
	s.mu.Unlock()

	slog.Info("scan: session armed",
		"session_id", s.id,
		"interval", s.interval,
		"torch_supported", s.source.TorchSupported(),
	)

	s.wg.Add(1)
	go s.loop(loopCtx)

	return nil
}

// loop polls the source until a decode hit, Stop, or context
// cancellation.
func (s *Session) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.tick() {
				return
			}
		}
	}
}

// tick grabs and decodes one frame. Returns true when the session is
// done (result delivered).
func (s *Session) tick() bool {
	frame := s.source.Grab()
	if frame == nil {
		// No new frame this tick; never an error.
		s.mu.Lock()
		s.framesSkipped++
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	s.framesScanned++
	s.mu.Unlock()

	result, ok := s.runner.Decode(frame)
	if !ok {
		return false
	}
	return s.succeed(result, frame.Seq)
}

// succeed terminates the session and delivers the result. The at-most-
// once guarantee lives here: the first caller to flip the state wins,
// any concurrent Stop or late hit sees terminated and backs off.
func (s *Session) succeed(result decode.Result, frameSeq uint64) bool {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		return true
	}
	s.state = StateTerminated
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	if err := s.source.Close(); err != nil {
		slog.Error("scan: failed to release frame source", "session_id", s.id, "error", err)
	}

	slog.Info("scan: decode hit",
		"session_id", s.id,
		"strategy", result.Strategy,
		"frame_seq", frameSeq,
	)

	s.onResult(result)
	return true
}

// Stop terminates an armed session without a result. No-op on idle and
// terminated sessions, so callers never need to track whether a result
// already landed.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateTerminated
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	if err := s.source.Close(); err != nil {
		slog.Error("scan: failed to release frame source", "session_id", s.id, "error", err)
	}

	slog.Info("scan: session stopped", "session_id", s.id)

	if s.onStop != nil {
		s.onStop()
	}
	return nil
}

// Wait blocks until the capture loop has exited. Mainly for tests and
// orderly shutdown.
func (s *Session) Wait() {
	s.wg.Wait()
}

// SetTorch toggles the torch while the session is armed. Rejected
// outside the armed state (the device is not held) and a silent no-op
// on hardware without a torch.
func (s *Session) SetTorch(on bool) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != StateArmed {
		return fmt.Errorf("scan: torch requires an armed session, state is %s", state)
	}
	if !s.source.TorchSupported() {
		return nil
	}
	return s.source.SetTorch(on)
}

// Stats returns a snapshot of session counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		ID:            s.id,
		State:         s.state.String(),
		FramesScanned: s.framesScanned,
		FramesSkipped: s.framesSkipped,
		StartedAt:     s.startedAt,
		Source:        s.source.Stats(),
	}
}
