// Package config loads and validates the scanner station configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete scanner station configuration
type Config struct {
	StationID        string          `yaml:"station_id"`
	ShutdownTimeoutS int             `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Camera           CameraConfig    `yaml:"camera"`
	Scan             ScanConfig      `yaml:"scan"`
	MQTT             MQTTConfig      `yaml:"mqtt"`
	Inventory        InventoryConfig `yaml:"inventory"`
	HTTP             HTTPConfig      `yaml:"http"`
}

// CameraConfig contains camera settings
type CameraConfig struct {
	Device     string `yaml:"device"`     // V4L2 device path, empty selects the synthetic source
	Resolution string `yaml:"resolution"` // 480p, 720p, 1080p
	Torch      bool   `yaml:"torch"`      // device exposes a V4L2 flash control
}

// ScanConfig contains scan loop and filter tuning settings
type ScanConfig struct {
	IntervalMS          int     `yaml:"interval_ms"`          // frame polling period (default: 450)
	RearmDelayMS        int     `yaml:"rearm_delay_ms"`       // pause between sessions (default: 1500)
	Contrast            float64 `yaml:"contrast"`             // contrast remap amount (default: 36)
	SharpenAmount       float64 `yaml:"sharpen_amount"`       // unsharp blend weight (default: 1.0)
	AdaptiveWindow      int     `yaml:"adaptive_window"`      // adaptive threshold window in pixels (default: 41)
	AdaptiveSensitivity float64 `yaml:"adaptive_sensitivity"` // adaptive threshold sensitivity (default: 0.12)
	CloseIterations     int     `yaml:"close_iterations"`     // morphological close rounds (default: 1)
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Scans  string `yaml:"scans"`
	Health string `yaml:"health"`
}

// InventoryConfig points at the inventory backend
type InventoryConfig struct {
	BaseURL  string `yaml:"base_url"`
	TimeoutS int    `yaml:"timeout_s"` // per-request timeout (default: 5)
}

// HTTPConfig contains the health/status server settings
type HTTPConfig struct {
	Addr string `yaml:"addr"` // listen address (default: :8080)
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Resolution converts the camera resolution name to width/height
func (c *Config) Resolution() (width, height int) {
	return parseResolution(c.Camera.Resolution)
}

func parseResolution(res string) (width, height int) {
	switch res {
	case "480p":
		return 640, 480
	case "720p":
		return 1280, 720
	case "1080p", "":
		return 1920, 1080
	default:
		return 1920, 1080
	}
}
