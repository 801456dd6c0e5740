// Package simulator drives a running capture station with synthetic phone
// motion and camera frames, then checks what the session captured.
package simulator

import (
	"time"

	"github.com/okian/stillcap/internal/domain/model"
)

// Config holds configuration for a simulated session
type Config struct {
	BaseURL    string            // Base URL of the station
	Duration   time.Duration     // Upper bound on how long to stream
	SampleRate int               // Motion samples per second
	FrameRate  int               // Camera frames per second; zero disables the camera feed
	StillFor   time.Duration     // Length of each still phase
	ShakeFor   time.Duration     // Length of each shake phase; zero streams a still phone
	Mode       model.GravityMode // Acceleration field the phone reports
	Seed       uint64            // Noise seed; zero picks one from the clock
	Timeout    time.Duration     // HTTP request timeout
	AutoStart  bool              // Start a session once the feeds are flowing
	Verbose    bool              // Log every session poll
}

// SessionStatus mirrors GET /session.
type SessionStatus struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Stats     struct {
		ScoreMin     float64 `json:"score_min"`
		ScoreMax     float64 `json:"score_max"`
		CaptureCount int     `json:"capture_count"`
	} `json:"stats"`
	Settings  model.Settings `json:"settings"`
	LastError *struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// CaptureList mirrors GET /captures.
type CaptureList struct {
	Count  int           `json:"count"`
	Frames []model.Frame `json:"frames"`
}

// Stats holds run statistics
type Stats struct {
	SamplesSent   int
	FramesSent    int
	StillSamples  int
	ShakeSamples  int
	Captures      int
	FinalState    string
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	SessionStarts int
}
