package model

import (
	"errors"
	"fmt"
	"math"
)

// Settings defaults.
const (
	DefaultThreshold   = 0.95
	DefaultCooldownMs  = 5000
	DefaultTargetCount = 500
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// SessionState is the controller state.
type SessionState int

const (
	Idle SessionState = iota
	Priming
	Capturing
	Stopped
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Priming:
		return "priming"
	case Capturing:
		return "capturing"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionStats are the running statistics of one session.
type SessionStats struct {
	ScoreMin        float64 `json:"score_min"`
	ScoreMax        float64 `json:"score_max"`
	CaptureCount    int     `json:"capture_count"`
	StartedAtMs     *int64  `json:"started_at_ms"`
	LastCaptureAtMs int64   `json:"last_capture_at_ms"`
}

// NewSessionStats returns the values a session starts from.
func NewSessionStats() SessionStats {
	return SessionStats{ScoreMin: 1, ScoreMax: 0}
}

// Settings are the operator-tunable gate parameters.
type Settings struct {
	Threshold   float64 `json:"threshold"`
	CooldownMs  int64   `json:"cooldown_ms"`
	TargetCount int     `json:"target_count"`
}

// DefaultSettings returns threshold 0.95, cooldown 5000 ms, target 500.
func DefaultSettings() Settings {
	return Settings{
		Threshold:   DefaultThreshold,
		CooldownMs:  DefaultCooldownMs,
		TargetCount: DefaultTargetCount,
	}
}

// Validate checks the ranges the gate relies on.
func (s Settings) Validate() error {
	switch {
	case math.IsNaN(s.Threshold) || s.Threshold < 0 || s.Threshold > 1:
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidSettings, s.Threshold)
	case s.CooldownMs < 0:
		return fmt.Errorf("%w: cooldown %d ms is negative", ErrInvalidSettings, s.CooldownMs)
	case s.TargetCount < 1:
		return fmt.Errorf("%w: target count %d below 1", ErrInvalidSettings, s.TargetCount)
	}
	return nil
}

// Observation is what a tick reports to the display.
type Observation struct {
	Score        float64      `json:"score"`
	ScoreMin     float64      `json:"score_min"`
	ScoreMax     float64      `json:"score_max"`
	ElapsedMs    int64        `json:"elapsed_ms"`
	CaptureCount int          `json:"capture_count"`
	TargetCount  int          `json:"target_count"`
	State        SessionState `json:"state"`
	Captured     bool         `json:"captured"`
	Sample       MotionSample `json:"sample"`
}
