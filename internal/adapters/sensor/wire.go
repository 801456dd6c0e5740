// Package sensor receives motion samples from phones and IMUs and records
// them into the motion buffer.
package sensor

import (
	"encoding/json"
	"fmt"

	"github.com/okian/stillcap/internal/domain/model"
)

// WireVector is an x/y/z reading on the wire.
type WireVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WireRotation uses the DeviceMotionEvent rotation axes in degrees per second.
type WireRotation struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// WireSample is the JSON message sent by sensor clients over websocket and
// MQTT. Clients may send both acceleration fields; only the configured one is
// read.
type WireSample struct {
	ID                           string        `json:"id,omitempty"`
	Acceleration                 *WireVector   `json:"acceleration,omitempty"`
	AccelerationIncludingGravity *WireVector   `json:"accelerationIncludingGravity,omitempty"`
	RotationRate                 *WireRotation `json:"rotationRate,omitempty"`
	TimestampMs                  int64         `json:"timestamp_ms"`
}

// Decode parses a wire message. mode picks which acceleration field is used;
// a message without that field is invalid.
func Decode(data []byte, mode model.GravityMode) (string, model.MotionSample, error) {
	var w WireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return "", model.MotionSample{}, fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}
	s, err := w.Sample(mode)
	return w.ID, s, err
}

// Sample converts the wire form into a domain sample.
func (w WireSample) Sample(mode model.GravityMode) (model.MotionSample, error) {
	// The two fields differ by gravity, so mixing them in one buffer reads
	// as a 9.8 m/s² jump.
	accel, field := w.AccelerationIncludingGravity, "accelerationIncludingGravity"
	if mode == model.GravityExcluded {
		accel, field = w.Acceleration, "acceleration"
	}
	if accel == nil {
		return model.MotionSample{}, fmt.Errorf("%w: missing %s", ErrInvalidSample, field)
	}

	s := model.MotionSample{
		Acceleration: model.Vector3{X: accel.X, Y: accel.Y, Z: accel.Z},
		TimestampMs:  w.TimestampMs,
	}
	if w.RotationRate != nil {
		s.RotationRate = model.Vector3{X: w.RotationRate.Alpha, Y: w.RotationRate.Beta, Z: w.RotationRate.Gamma}
	}
	return s, nil
}

// Encode renders a sample in wire form. Used by the simulator.
func Encode(id string, s model.MotionSample, mode model.GravityMode) ([]byte, error) {
	v := &WireVector{X: s.Acceleration.X, Y: s.Acceleration.Y, Z: s.Acceleration.Z}
	w := WireSample{
		ID:           id,
		RotationRate: &WireRotation{Alpha: s.RotationRate.X, Beta: s.RotationRate.Y, Gamma: s.RotationRate.Z},
		TimestampMs:  s.TimestampMs,
	}
	if mode == model.GravityExcluded {
		w.Acceleration = v
	} else {
		w.AccelerationIncludingGravity = v
	}
	return json.Marshal(w)
}
