// Package api serves the station's health and status HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aftab97/qr-inventory-scanner/internal/emitter"
	"github.com/aftab97/qr-inventory-scanner/internal/scan"
)

// StationStatus is the /status response body.
type StationStatus struct {
	Status         string  `json:"status"` // "healthy", "degraded", "unhealthy"
	StationID      string  `json:"station_id"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	ScansCompleted uint64  `json:"scans_completed"`
	ScanErrors     uint64  `json:"scan_errors"`
	LastCode       string  `json:"last_code,omitempty"`
	LastStrategy   string  `json:"last_strategy,omitempty"`
	SessionState   string  `json:"session_state"`
	FramesScanned  uint64  `json:"frames_scanned"`
	FramesSkipped  uint64  `json:"frames_skipped"`
	CameraOpen     bool    `json:"camera_open"`
	MQTTConnected  bool    `json:"mqtt_connected"`
	MQTTErrors     uint64  `json:"mqtt_errors"`
}

// Server exposes the scan service over HTTP: liveness, readiness, status
// and a torch toggle for the shelf operator.
type Server struct {
	service *scan.Service
	emitter *emitter.MQTTEmitter
	server  *http.Server
	started time.Time
}

// NewServer creates the HTTP server. The emitter may be nil when the
// station runs without a broker.
func NewServer(addr string, service *scan.Service, em *emitter.MQTTEmitter) (*Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("api: listen address is required")
	}
	if service == nil {
		return nil, fmt.Errorf("api: scan service is required")
	}

	s := &Server{
		service: service,
		emitter: em,
		started: time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleLiveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReadiness).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/torch", s.handleTorch).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start begins serving in a background goroutine (non-blocking).
func (s *Server) Start() {
	slog.Info("api: http server starting",
		"addr", s.server.Addr,
		"endpoints", []string{"/healthz", "/readyz", "/status", "/torch"},
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api: http server failed", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := s.buildStatus()
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buildStatus())
}

func (s *Server) handleTorch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"on\": bool}"})
		return
	}
	if err := s.service.SetTorch(body.On); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"on": body.On})
}

func (s *Server) buildStatus() StationStatus {
	stats := s.service.Stats()

	status := StationStatus{
		Status:         "healthy",
		StationID:      stats.StationID,
		UptimeSeconds:  int64(stats.UptimeS),
		ScansCompleted: stats.ScansCompleted,
		ScanErrors:     stats.ScanErrors,
		LastCode:       stats.LastCode,
		LastStrategy:   stats.LastStrategy,
		SessionState:   stats.Session.State,
		FramesScanned:  stats.Session.FramesScanned,
		FramesSkipped:  stats.Session.FramesSkipped,
		CameraOpen:     stats.Session.Source.IsOpen,
	}

	if s.emitter != nil {
		es := s.emitter.Stats()
		status.MQTTConnected = es.Connected
		status.MQTTErrors = es.Errors
	}

	if !stats.Running {
		status.Status = "unhealthy"
	} else if s.emitter != nil && !status.MQTTConnected {
		status.Status = "degraded"
	}

	return status
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
