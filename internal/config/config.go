// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Validation failures wrap ErrInvalidConfig, loading failures ErrLoadConfig.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/stillcap/internal/domain/model"
)

// Acceleration sources accepted by AccelerationSource.
const (
	AccelerationIncludingGravity = "gravity"
	AccelerationLinear           = "linear"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Threshold is the stability score a frame must exceed to be captured.
	Threshold float64 `koanf:"threshold"`

	// CooldownMS is the minimum gap between two automatic captures.
	CooldownMS int64 `koanf:"cooldown_ms"`

	// TargetCount stops the session once this many frames were captured.
	TargetCount int `koanf:"target_count"`

	// AccelWeight and GyroWeight weigh the two motion terms of the penalty.
	AccelWeight float64 `koanf:"accel_weight"`
	GyroWeight  float64 `koanf:"gyro_weight"`

	// AccelerationSource picks which wire field feeds the buffer:
	// "gravity" (accelerationIncludingGravity) or "linear" (acceleration).
	AccelerationSource string `koanf:"acceleration_source"`

	// FrameIntervalMS is the frame driver period.
	FrameIntervalMS int `koanf:"frame_interval_ms"`

	// LivenessTimeoutMS bounds the wait for a first sensor sample on start.
	LivenessTimeoutMS int `koanf:"liveness_timeout_ms"`

	// CameraTimeoutMS bounds the wait for a first camera frame on start.
	// RequireCamera disables the check for sensor-only rigs when false.
	CameraTimeoutMS int  `koanf:"camera_timeout_ms"`
	RequireCamera   bool `koanf:"require_camera"`

	// ObservationQueueSize bounds the display queue.
	ObservationQueueSize int `koanf:"observation_queue_size"`

	// MaxStoredFrames caps the in-memory frame store; zero means no cap.
	MaxStoredFrames int `koanf:"max_stored_frames"`

	// DedupeWindow is how many recent sample IDs are remembered across feeds.
	DedupeWindow int `koanf:"dedupe_window"`

	// SourceHandoverMS is how long the active sensor device may stay silent
	// before another device takes over the motion buffer.
	SourceHandoverMS int `koanf:"source_handover_ms"`

	// MQTT sensor feed; disabled when MQTTBroker is empty.
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTTopic    string `koanf:"mqtt_topic"`
	MQTTClientID string `koanf:"mqtt_client_id"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Threshold:            0.95,
		CooldownMS:           5000,
		TargetCount:          500,
		AccelWeight:          2.0,
		GyroWeight:           0.02,
		AccelerationSource:   AccelerationIncludingGravity,
		FrameIntervalMS:      16,
		LivenessTimeoutMS:    3000,
		CameraTimeoutMS:      3000,
		RequireCamera:        true,
		ObservationQueueSize: 256,
		DedupeWindow:         1024,
		SourceHandoverMS:     2000,
		MaxStoredFrames:      2000,
		MQTTTopic:            "stillcap/motion",
		MQTTClientID:         "stillcap-service",
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("%w: threshold must be within [0, 1], got %v", ErrInvalidConfig, c.Threshold)
	case c.CooldownMS < 0:
		return fmt.Errorf("%w: cooldown_ms must not be negative", ErrInvalidConfig)
	case c.TargetCount < 1:
		return fmt.Errorf("%w: target_count must be at least 1", ErrInvalidConfig)
	case c.AccelWeight < 0 || c.GyroWeight < 0:
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfig)
	case c.FrameIntervalMS < 1:
		return fmt.Errorf("%w: frame_interval_ms must be positive", ErrInvalidConfig)
	case c.LivenessTimeoutMS < 1 || c.CameraTimeoutMS < 1:
		return fmt.Errorf("%w: startup timeouts must be positive", ErrInvalidConfig)
	case c.SourceHandoverMS < 1:
		return fmt.Errorf("%w: source_handover_ms must be positive", ErrInvalidConfig)
	case c.MaxStoredFrames < 0:
		return fmt.Errorf("%w: max_stored_frames must not be negative", ErrInvalidConfig)
	}
	switch c.AccelerationSource {
	case AccelerationIncludingGravity, AccelerationLinear:
	default:
		return fmt.Errorf("%w: acceleration_source must be %q or %q", ErrInvalidConfig,
			AccelerationIncludingGravity, AccelerationLinear)
	}
	return nil
}

// FrameInterval returns the frame driver period.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

// LivenessTimeout returns the sensor liveness window.
func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.LivenessTimeoutMS) * time.Millisecond
}

// CameraTimeout returns the camera readiness window.
func (c *Config) CameraTimeout() time.Duration {
	return time.Duration(c.CameraTimeoutMS) * time.Millisecond
}

// SourceHandover returns how long a silent sensor device keeps the buffer.
func (c *Config) SourceHandover() time.Duration {
	return time.Duration(c.SourceHandoverMS) * time.Millisecond
}

// GravityMode maps AccelerationSource onto the sample convention.
func (c *Config) GravityMode() model.GravityMode {
	if c.AccelerationSource == AccelerationLinear {
		return model.GravityExcluded
	}
	return model.GravityIncluded
}

// Settings returns the initial session gate settings.
func (c *Config) Settings() model.Settings {
	return model.Settings{
		Threshold:   c.Threshold,
		CooldownMs:  c.CooldownMS,
		TargetCount: c.TargetCount,
	}
}
