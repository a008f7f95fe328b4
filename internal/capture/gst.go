package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/aftab97/qr-inventory-scanner/internal/imaging"
)

// CameraConfig configures a GStreamer camera source.
type CameraConfig struct {
	// Device is the V4L2 device path (e.g. /dev/video0). Required.
	Device string
	// NativeWidth and NativeHeight are the ideal sensor resolution to
	// request. Defaults to 1920x1080; the delivered frames are scaled
	// down to at most MaxCaptureWidth.
	NativeWidth  int
	NativeHeight int
	// Torch declares that the device exposes a V4L2 flash control.
	// Toggling is always best-effort; this only gates the capability
	// report.
	Torch bool
}

// GStreamerSource captures RGBA frames from a local camera through a
// GStreamer pipeline:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGBA) → appsink
//
// The appsink keeps only the newest sample (max-buffers=1, drop) and the
// sample callback writes into a single-slot mailbox, so Grab always sees
// the latest frame and slow consumers drop instead of queueing.
type GStreamerSource struct {
	device       string
	width        int
	height       int
	torchCapable bool

	mu       sync.Mutex
	pipeline *gst.Pipeline
	src      *gst.Element
	sink     *app.Sink
	latest   *imaging.Frame

	// Counters (atomic for lock-free Stats reads)
	framesCaptured uint64
	framesSkipped  uint64
	seq            uint64
}

// NewGStreamerSource validates the configuration and verifies GStreamer
// availability (fail-fast, at construction time). The device is not
// touched until Open.
func NewGStreamerSource(cfg CameraConfig) (*GStreamerSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("capture: camera device is required")
	}
	if cfg.NativeWidth <= 0 || cfg.NativeHeight <= 0 {
		cfg.NativeWidth, cfg.NativeHeight = 1920, 1080
	}
	width, height := CaptureSize(cfg.NativeWidth, cfg.NativeHeight)

	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("capture: GStreamer not available: %w", err)
	}

	s := &GStreamerSource{
		device:       cfg.Device,
		width:        width,
		height:       height,
		torchCapable: cfg.Torch,
	}

	slog.Info("capture: camera source created",
		"device", cfg.Device,
		"native", fmt.Sprintf("%dx%d", cfg.NativeWidth, cfg.NativeHeight),
		"capture", fmt.Sprintf("%dx%d", width, height),
		"torch", cfg.Torch,
	)

	return s, nil
}

// Open builds the pipeline and starts capture. Frames begin arriving
// asynchronously once the pipeline reaches PLAYING state; until then
// Grab returns nil (skipped ticks).
func (s *GStreamerSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipeline != nil {
		return fmt.Errorf("capture: source already open")
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("capture: failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("capture: failed to create v4l2src: %w", err)
	}
	src.SetProperty("device", s.device)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("capture: failed to create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("capture: failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("capture: failed to create capsfilter: %w", err)
	}
	capsStr := fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d", s.width, s.height)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("capture: failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // real-time, no clock sync
	appsink.SetProperty("max-buffers", 1) // keep only the latest frame
	appsink.SetProperty("drop", true)

	if err := pipeline.AddMany(src, converter, scaler, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("capture: failed to assemble pipeline: %w", err)
	}
	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("capture: failed to link pipeline elements: %w", err)
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("capture: failed to start pipeline: %w", err)
	}

	// Wait briefly for the pipeline to reach PLAYING; a slow camera is
	// not fatal, frames just start arriving later.
	bus := pipeline.GetPipelineBus()
	if msg := bus.TimedPop(3 * time.Second); msg != nil && msg.Type() == gst.MessageStateChanged {
		if _, newState := msg.ParseStateChanged(); newState == gst.StatePlaying {
			slog.Info("capture: pipeline reached PLAYING state", "device", s.device)
		}
	}

	s.pipeline = pipeline
	s.src = src
	s.sink = appsink
	s.latest = nil

	slog.Info("capture: camera opened",
		"device", s.device,
		"caps", capsStr,
	)

	return nil
}

// onNewSample copies the newest sample into the mailbox. Any failure
// here skips the frame; a single bad sample must not take down capture.
func (s *GStreamerSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Debug("capture: failed to pull sample, skipping frame")
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Debug("capture: sample without buffer, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	want := s.width * s.height * 4
	if len(data) < want {
		buffer.Unmap()
		slog.Debug("capture: short buffer, skipping frame",
			"got", len(data),
			"want", want,
		)
		return gst.FlowOK
	}
	pix := make([]byte, want)
	copy(pix, data[:want])
	buffer.Unmap()

	frame := &imaging.Frame{
		Width:     s.width,
		Height:    s.height,
		Pix:       pix,
		Seq:       atomic.AddUint64(&s.seq, 1),
		Timestamp: time.Now(),
		TraceID:   uuid.New().String(),
	}
	atomic.AddUint64(&s.framesCaptured, 1)

	// Mailbox overwrite: a frame the session never grabbed is stale
	// the moment a newer one lands.
	s.mu.Lock()
	s.latest = frame
	s.mu.Unlock()

	return gst.FlowOK
}

// Grab returns the newest unconsumed frame, or nil when nothing new has
// arrived since the last call.
func (s *GStreamerSource) Grab() *imaging.Frame {
	s.mu.Lock()
	frame := s.latest
	s.latest = nil
	s.mu.Unlock()

	if frame == nil {
		atomic.AddUint64(&s.framesSkipped, 1)
	}
	return frame
}

// TorchSupported reports the configured torch capability.
func (s *GStreamerSource) TorchSupported() bool {
	return s.torchCapable
}

// SetTorch toggles the V4L2 flash LED through v4l2src extra-controls.
// Best-effort: devices without the control ignore it, and a closed
// source is a silent no-op.
func (s *GStreamerSource) SetTorch(on bool) error {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		return nil
	}

	// V4L2_FLASH_LED_MODE_TORCH=2, V4L2_FLASH_LED_MODE_NONE=0
	mode := 0
	if on {
		mode = 2
	}
	controls := gst.NewStructureFromString(fmt.Sprintf("controls,flash_led_mode=%d", mode))
	if controls == nil {
		slog.Debug("capture: torch control structure rejected")
		return nil
	}
	src.SetProperty("extra-controls", controls)

	slog.Debug("capture: torch toggled", "on", on)
	return nil
}

// Close stops the pipeline and releases the camera. Idempotent; the
// source can be reopened afterwards.
func (s *GStreamerSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipeline == nil {
		return nil
	}

	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		slog.Error("capture: failed to stop pipeline", "error", err)
	}
	s.pipeline = nil
	s.src = nil
	s.sink = nil
	s.latest = nil

	slog.Info("capture: camera closed",
		"device", s.device,
		"frames_captured", atomic.LoadUint64(&s.framesCaptured),
	)

	return nil
}

// Stats returns a snapshot of capture counters.
func (s *GStreamerSource) Stats() SourceStats {
	s.mu.Lock()
	isOpen := s.pipeline != nil
	s.mu.Unlock()

	return SourceStats{
		FramesCaptured: atomic.LoadUint64(&s.framesCaptured),
		FramesSkipped:  atomic.LoadUint64(&s.framesSkipped),
		Width:          s.width,
		Height:         s.height,
		IsOpen:         isOpen,
	}
}

// checkGStreamerAvailable verifies the GStreamer runtime at
// construction time.
func checkGStreamerAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)

	return nil
}
