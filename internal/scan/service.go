package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aftab97/qr-inventory-scanner/internal/capture"
	"github.com/aftab97/qr-inventory-scanner/internal/decode"
	"github.com/aftab97/qr-inventory-scanner/internal/inventory"
)

// ScanEvent is the message published after every successful decode. The
// item block is present only when the backend knows the code.
type ScanEvent struct {
	StationID string          `json:"station_id"`
	SessionID string          `json:"session_id"`
	Code      string          `json:"code"`
	Strategy  string          `json:"strategy"`
	Found     bool            `json:"found"`
	Item      *inventory.Item `json:"item,omitempty"`
	ScannedAt time.Time       `json:"scanned_at"`
}

// ServiceConfig configures the scan station service.
type ServiceConfig struct {
	StationID string
	// Interval between frame polls within a session
	Interval time.Duration
	// RearmDelay is the pause between a delivered result and the next
	// armed session
	RearmDelay time.Duration
}

// ServiceStats is a snapshot of station counters.
type ServiceStats struct {
	StationID      string
	Running        bool
	UptimeS        float64
	ScansCompleted uint64
	ScanErrors     uint64
	LastCode       string
	LastStrategy   string
	Session        SessionStats
}

// Service chains scan sessions into a continuous station: each delivered
// result is resolved against the inventory backend, published to the
// broker, and after a short pause a fresh session is armed on the same
// source.
type Service struct {
	cfg       ServiceConfig
	source    capture.Source
	runner    *decode.Runner
	publisher ScanPublisher
	directory ItemDirectory

	mu             sync.RWMutex
	isRunning      bool
	started        time.Time
	session        *Session
	scansCompleted uint64
	scanErrors     uint64
	lastCode       string
	lastStrategy   string

	cancel context.CancelFunc
}

// NewService creates a station service. The publisher and directory are
// optional; a nil collaborator skips that delivery path (useful for the
// headless demo).
func NewService(source capture.Source, runner *decode.Runner, publisher ScanPublisher, directory ItemDirectory, cfg ServiceConfig) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("scan: frame source is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("scan: strategy runner is required")
	}
	if cfg.StationID == "" {
		return nil, fmt.Errorf("scan: station id is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultScanInterval
	}
	if cfg.RearmDelay <= 0 {
		cfg.RearmDelay = 1500 * time.Millisecond
	}

	return &Service{
		cfg:       cfg,
		source:    source,
		runner:    runner,
		publisher: publisher,
		directory: directory,
	}, nil
}

// Run starts the session loop and blocks until the context is cancelled
// or an unrecoverable error occurs.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("scan: service is already running")
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	slog.Info("scan: station service starting",
		"station_id", s.cfg.StationID,
		"interval", s.cfg.Interval,
		"rearm_delay", s.cfg.RearmDelay,
	)

	for {
		if ctx.Err() != nil {
			slog.Info("scan: station service run loop exiting")
			return nil
		}

		result, err := s.runOneSession(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Source failures are terminal; the operator restarts the
			// station once the camera is back.
			return fmt.Errorf("scan: session failed: %w", err)
		}
		if result == nil {
			// Session was stopped by shutdown.
			continue
		}

		s.handleResult(ctx, *result)

		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.RearmDelay):
		}
	}
}

// runOneSession arms a session and waits for its first result. A nil
// result with a nil error means the session ended via shutdown.
func (s *Service) runOneSession(ctx context.Context) (*decode.Result, error) {
	resultCh := make(chan decode.Result, 1)

	session, err := NewSession(s.source, s.runner, SessionConfig{
		Interval: s.cfg.Interval,
		OnResult: func(result decode.Result) { resultCh <- result },
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		return nil, err
	}

	select {
	case result := <-resultCh:
		session.Wait()
		return &result, nil
	case <-ctx.Done():
		if err := session.Stop(); err != nil {
			slog.Error("scan: failed to stop session during shutdown", "error", err)
		}
		// A result may have raced the cancellation; deliver it rather
		// than drop a completed scan.
		select {
		case result := <-resultCh:
			return &result, nil
		default:
			return nil, nil
		}
	}
}

// handleResult resolves, publishes, and records one decode hit. Delivery
// failures are logged and counted, never fatal: the station keeps
// scanning.
func (s *Service) handleResult(ctx context.Context, result decode.Result) {
	s.mu.Lock()
	sessionID := ""
	if s.session != nil {
		sessionID = s.session.ID()
	}
	s.scansCompleted++
	s.lastCode = result.Payload
	s.lastStrategy = result.Strategy
	s.mu.Unlock()

	event := ScanEvent{
		StationID: s.cfg.StationID,
		SessionID: sessionID,
		Code:      result.Payload,
		Strategy:  result.Strategy,
		ScannedAt: time.Now().UTC(),
	}

	if s.directory != nil {
		item, err := s.directory.LookupItem(ctx, result.Payload)
		switch {
		case err == nil:
			event.Found = true
			event.Item = item
		case errors.Is(err, inventory.ErrItemNotFound):
			slog.Warn("scan: code not in inventory", "code", result.Payload)
		default:
			s.countError()
			slog.Error("scan: inventory lookup failed", "code", result.Payload, "error", err)
		}

		if err := s.directory.RecordScan(ctx, inventory.ScanRecord{
			Code:      result.Payload,
			StationID: s.cfg.StationID,
			Strategy:  result.Strategy,
			ScannedAt: event.ScannedAt,
		}); err != nil {
			s.countError()
			slog.Error("scan: failed to record scan", "code", result.Payload, "error", err)
		}
	}

	if s.publisher != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			s.countError()
			slog.Error("scan: failed to marshal scan event", "error", err)
			return
		}
		if err := s.publisher.PublishScan(payload); err != nil {
			s.countError()
			slog.Error("scan: failed to publish scan event", "error", err)
			return
		}
	}

	slog.Info("scan: scan completed",
		"station_id", s.cfg.StationID,
		"code", result.Payload,
		"strategy", result.Strategy,
		"found", event.Found,
	)
}

func (s *Service) countError() {
	s.mu.Lock()
	s.scanErrors++
	s.mu.Unlock()
}

// SetTorch forwards a torch toggle to the currently armed session.
func (s *Service) SetTorch(on bool) error {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("scan: no active session")
	}
	return session.SetTorch(on)
}

// Shutdown stops the session loop and waits for it to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	session := s.session
	s.mu.Unlock()

	slog.Info("scan: shutting down station service")

	if cancel != nil {
		cancel()
	}
	if session != nil {
		if err := session.Stop(); err != nil {
			slog.Error("scan: failed to stop session", "error", err)
		}
	}

	s.mu.Lock()
	uptime := time.Since(s.started)
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("scan: station service shutdown complete", "uptime", uptime)
	return nil
}

// Stats returns a snapshot of station counters.
func (s *Service) Stats() ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uptime float64
	if s.isRunning {
		uptime = time.Since(s.started).Seconds()
	}
	stats := ServiceStats{
		StationID:      s.cfg.StationID,
		Running:        s.isRunning,
		UptimeS:        uptime,
		ScansCompleted: s.scansCompleted,
		ScanErrors:     s.scanErrors,
		LastCode:       s.lastCode,
		LastStrategy:   s.lastStrategy,
	}
	if s.session != nil {
		stats.Session = s.session.Stats()
	}
	return stats
}
