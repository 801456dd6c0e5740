// Package model contains domain models passed between layers.
package model

import "math"

// Vector3 is a three-axis reading. Rotation rates use X=alpha, Y=beta,
// Z=gamma in degrees per second.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Norm returns the Euclidean length of v.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// IsFinite reports whether every component is a finite number.
func (v Vector3) IsFinite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// MotionSample is one sensor event. Values are never mutated after Record.
type MotionSample struct {
	Acceleration Vector3 `json:"acceleration"`
	RotationRate Vector3 `json:"rotation_rate"`
	TimestampMs  int64   `json:"timestamp_ms"`
}

// GravityMode tells which acceleration convention a sample carries.
type GravityMode int

const (
	// GravityIncluded is raw accelerometer output (accelerationIncludingGravity).
	GravityIncluded GravityMode = iota
	// GravityExcluded is platform-filtered linear acceleration.
	GravityExcluded
)

func (g GravityMode) String() string {
	if g == GravityExcluded {
		return "excluded"
	}
	return "included"
}
