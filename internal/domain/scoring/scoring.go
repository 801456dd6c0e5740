// Package scoring turns consecutive motion samples into a stability score.
package scoring

import (
	"math"

	"github.com/okian/stillcap/internal/domain/model"
)

// Default penalty weights. Ordinary hand tremor should not saturate the
// penalty: a 0.05 m/s² jitter with 5 °/s rotation still scores about 0.82.
const (
	DefaultAccelWeight = 2.0
	DefaultGyroWeight  = 0.02

	// Version identifies the formula so recorded sessions can be compared.
	Version = "delta-exp/v1"
)

// Scorer computes a stability score in (0, 1].
type Scorer interface {
	Score(sample, previous model.MotionSample, hasBaseline bool) float64
}

// Option applies a configuration option to the DeltaScorer.
type Option func(*DeltaScorer)

// WithWeights sets the acceleration and rotation weights. Negative values
// are ignored.
func WithWeights(accel, gyro float64) Option {
	return func(s *DeltaScorer) {
		if accel >= 0 {
			s.accelWeight = accel
		}
		if gyro >= 0 {
			s.gyroWeight = gyro
		}
	}
}

// DeltaScorer scores the change of acceleration between consecutive samples
// plus the instantaneous rotation speed:
//
//	penalty = wA*||a(t) - a(t-1)|| + wG*||r(t)||
//	score   = exp(-penalty)
//
// Differencing consecutive raw readings cancels the constant gravity bias,
// so the scorer works with either acceleration convention.
type DeltaScorer struct {
	accelWeight float64
	gyroWeight  float64
}

// NewDeltaScorer creates a scorer with the default weights.
func NewDeltaScorer(opts ...Option) *DeltaScorer {
	s := &DeltaScorer{
		accelWeight: DefaultAccelWeight,
		gyroWeight:  DefaultGyroWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Penalty returns the weighted motion penalty. It is zero without a baseline.
func (s *DeltaScorer) Penalty(sample, previous model.MotionSample, hasBaseline bool) float64 {
	if !hasBaseline {
		return 0
	}
	netAccelChange := sample.Acceleration.Sub(previous.Acceleration).Norm()
	angularSpeed := sample.RotationRate.Norm()
	p := s.accelWeight*netAccelChange + s.gyroWeight*angularSpeed
	if math.IsNaN(p) {
		return math.Inf(1)
	}
	return p
}

// Score returns exp(-penalty). The first frame of a session (no baseline)
// scores 1. The result never reaches 0, so a strict threshold comparison is
// defined for every input.
func (s *DeltaScorer) Score(sample, previous model.MotionSample, hasBaseline bool) float64 {
	if !hasBaseline {
		return 1
	}
	score := math.Exp(-s.Penalty(sample, previous, hasBaseline))
	if score <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return score
}

// Weights returns the acceleration and rotation weights in use.
func (s *DeltaScorer) Weights() (accel, gyro float64) {
	return s.accelWeight, s.gyroWeight
}

// Version returns the formula identifier.
func (s *DeltaScorer) Version() string { return Version }
