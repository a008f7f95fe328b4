package config

import (
	"fmt"
	"regexp"
)

var stationIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

var validResolutions = map[string]bool{
	"":      true, // defaults to 1080p
	"480p":  true,
	"720p":  true,
	"1080p": true,
}

// Validate checks the configuration and fills in defaults
func Validate(cfg *Config) error {
	// Validate station_id
	if cfg.StationID == "" {
		return fmt.Errorf("station_id is required")
	}
	if !stationIDPattern.MatchString(cfg.StationID) {
		return fmt.Errorf("station_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS < 0 {
		return fmt.Errorf("shutdown_timeout_s must be >= 0")
	}

	// Validate camera config
	if !validResolutions[cfg.Camera.Resolution] {
		return fmt.Errorf("camera.resolution must be one of 480p, 720p, 1080p")
	}

	// Validate scan config and apply tuning defaults
	if cfg.Scan.IntervalMS < 0 {
		return fmt.Errorf("scan.interval_ms must be >= 0")
	}
	if cfg.Scan.IntervalMS == 0 {
		cfg.Scan.IntervalMS = 450
	}
	if cfg.Scan.RearmDelayMS < 0 {
		return fmt.Errorf("scan.rearm_delay_ms must be >= 0")
	}
	if cfg.Scan.RearmDelayMS == 0 {
		cfg.Scan.RearmDelayMS = 1500
	}
	if cfg.Scan.Contrast == 0 {
		cfg.Scan.Contrast = 36
	}
	if cfg.Scan.Contrast <= -255 || cfg.Scan.Contrast >= 259 {
		return fmt.Errorf("scan.contrast must be in (-255, 259)")
	}
	if cfg.Scan.SharpenAmount == 0 {
		cfg.Scan.SharpenAmount = 1.0
	}
	if cfg.Scan.SharpenAmount < 0 {
		return fmt.Errorf("scan.sharpen_amount must be >= 0")
	}
	if cfg.Scan.AdaptiveWindow == 0 {
		cfg.Scan.AdaptiveWindow = 41
	}
	if cfg.Scan.AdaptiveWindow < 3 || cfg.Scan.AdaptiveWindow%2 == 0 {
		return fmt.Errorf("scan.adaptive_window must be an odd number >= 3")
	}
	if cfg.Scan.AdaptiveSensitivity == 0 {
		cfg.Scan.AdaptiveSensitivity = 0.12
	}
	if cfg.Scan.AdaptiveSensitivity < 0 || cfg.Scan.AdaptiveSensitivity >= 1 {
		return fmt.Errorf("scan.adaptive_sensitivity must be in [0, 1)")
	}
	if cfg.Scan.CloseIterations == 0 {
		cfg.Scan.CloseIterations = 1
	}
	if cfg.Scan.CloseIterations < 0 {
		return fmt.Errorf("scan.close_iterations must be >= 0")
	}

	// Validate MQTT broker
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	// Set default topics if not provided
	if cfg.MQTT.Topics.Scans == "" {
		cfg.MQTT.Topics.Scans = fmt.Sprintf("inventory/scans/%s", cfg.StationID)
	}
	if cfg.MQTT.Topics.Health == "" {
		cfg.MQTT.Topics.Health = fmt.Sprintf("inventory/health/%s", cfg.StationID)
	}

	// Set default QoS if not provided
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"scans":  1,
			"health": 0,
		}
	}

	// Validate inventory backend
	if cfg.Inventory.TimeoutS < 0 {
		return fmt.Errorf("inventory.timeout_s must be >= 0")
	}
	if cfg.Inventory.TimeoutS == 0 {
		cfg.Inventory.TimeoutS = 5
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}

	return nil
}
