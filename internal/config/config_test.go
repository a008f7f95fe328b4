package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
station_id: shelf-a1
mqtt:
  broker: localhost:1883
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shelf-a1", cfg.StationID)
	assert.Equal(t, 450, cfg.Scan.IntervalMS)
	assert.Equal(t, 1500, cfg.Scan.RearmDelayMS)
	assert.Equal(t, 36.0, cfg.Scan.Contrast)
	assert.Equal(t, 1.0, cfg.Scan.SharpenAmount)
	assert.Equal(t, 41, cfg.Scan.AdaptiveWindow)
	assert.Equal(t, 0.12, cfg.Scan.AdaptiveSensitivity)
	assert.Equal(t, 1, cfg.Scan.CloseIterations)
	assert.Equal(t, "inventory/scans/shelf-a1", cfg.MQTT.Topics.Scans)
	assert.Equal(t, "inventory/health/shelf-a1", cfg.MQTT.Topics.Health)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["scans"])
	assert.Equal(t, 5, cfg.Inventory.TimeoutS)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	w, h := cfg.Resolution()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestLoadExplicitValuesSurviveValidation(t *testing.T) {
	path := writeConfig(t, `
station_id: dock-3
shutdown_timeout_s: 10
camera:
  device: /dev/video2
  resolution: 720p
  torch: true
scan:
  interval_ms: 250
  rearm_delay_ms: 500
  contrast: 20
  adaptive_window: 31
mqtt:
  broker: broker.local:1883
  topics:
    scans: custom/scans
inventory:
  base_url: http://inventory.local:9000
  timeout_s: 3
http:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.ShutdownTimeoutS)
	assert.Equal(t, "/dev/video2", cfg.Camera.Device)
	assert.True(t, cfg.Camera.Torch)
	assert.Equal(t, 250, cfg.Scan.IntervalMS)
	assert.Equal(t, 500, cfg.Scan.RearmDelayMS)
	assert.Equal(t, 20.0, cfg.Scan.Contrast)
	assert.Equal(t, 31, cfg.Scan.AdaptiveWindow)
	assert.Equal(t, "custom/scans", cfg.MQTT.Topics.Scans)
	assert.Equal(t, "http://inventory.local:9000", cfg.Inventory.BaseURL)
	assert.Equal(t, 3, cfg.Inventory.TimeoutS)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)

	w, h := cfg.Resolution()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing station id",
			yaml:    "mqtt:\n  broker: localhost:1883\n",
			wantErr: "station_id",
		},
		{
			name:    "uppercase station id",
			yaml:    "station_id: Shelf-A1\nmqtt:\n  broker: localhost:1883\n",
			wantErr: "station_id",
		},
		{
			name:    "missing broker",
			yaml:    "station_id: shelf-a1\n",
			wantErr: "mqtt.broker",
		},
		{
			name:    "even adaptive window",
			yaml:    "station_id: shelf-a1\nscan:\n  adaptive_window: 40\nmqtt:\n  broker: localhost:1883\n",
			wantErr: "adaptive_window",
		},
		{
			name:    "sensitivity out of range",
			yaml:    "station_id: shelf-a1\nscan:\n  adaptive_sensitivity: 1.5\nmqtt:\n  broker: localhost:1883\n",
			wantErr: "adaptive_sensitivity",
		},
		{
			name:    "unknown resolution",
			yaml:    "station_id: shelf-a1\ncamera:\n  resolution: 4k\nmqtt:\n  broker: localhost:1883\n",
			wantErr: "resolution",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/scanner.yaml")
	require.Error(t, err)
}
