package simulator

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stillcap/internal/adapters/sensor"
	"github.com/okian/stillcap/internal/domain/model"
)

// Phase is what the simulated phone is doing.
type Phase int

const (
	Still Phase = iota
	Shake
)

func (p Phase) String() string {
	if p == Shake {
		return "shake"
	}
	return "still"
}

// Generator produces motion samples for one simulated device. It is not
// safe for concurrent use.
type Generator struct {
	device   string
	seq      uint64
	rng      *rand.Rand
	mode     model.GravityMode
	stillFor time.Duration
	shakeFor time.Duration
}

// NewGenerator creates a generator with a fresh device ID.
func NewGenerator(cfg *Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	stillFor := cfg.StillFor
	if stillFor <= 0 {
		stillFor = DefaultStillFor
	}
	return &Generator{
		device:   uuid.NewString(),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		mode:     cfg.Mode,
		stillFor: stillFor,
		shakeFor: cfg.ShakeFor,
	}
}

// Device returns the device ID used as the sample ID prefix.
func (g *Generator) Device() string { return g.device }

// PhaseAt returns the phase at elapsed time since streaming began. Phases
// alternate still, shake, still, ... starting with still.
func (g *Generator) PhaseAt(elapsed time.Duration) Phase {
	if g.shakeFor <= 0 {
		return Still
	}
	if elapsed%(g.stillFor+g.shakeFor) < g.stillFor {
		return Still
	}
	return Shake
}

// Next returns the next sample ID and sample.
func (g *Generator) Next(elapsed time.Duration, nowMs int64) (string, model.MotionSample, Phase) {
	g.seq++
	phase := g.PhaseAt(elapsed)
	accelNoise, gyroNoise := stillAccelNoise, stillGyroNoise
	if phase == Shake {
		accelNoise, gyroNoise = shakeAccelNoise, shakeGyroNoise
	}

	var gravity float64
	if g.mode == model.GravityIncluded {
		gravity = standardGravity
	}
	s := model.MotionSample{
		Acceleration: model.Vector3{
			X: g.noise(accelNoise),
			Y: g.noise(accelNoise),
			Z: gravity + g.noise(accelNoise),
		},
		RotationRate: model.Vector3{
			X: g.noise(gyroNoise),
			Y: g.noise(gyroNoise),
			Z: g.noise(gyroNoise),
		},
		TimestampMs: nowMs,
	}
	return fmt.Sprintf("%s:%d", g.device, g.seq), s, phase
}

// Payload returns the next sample encoded as a sensor feed message.
func (g *Generator) Payload(elapsed time.Duration, nowMs int64) ([]byte, Phase, error) {
	id, s, phase := g.Next(elapsed, nowMs)
	data, err := sensor.Encode(id, s, g.mode)
	if err != nil {
		return nil, phase, fmt.Errorf("encode sample %s: %w", id, err)
	}
	return data, phase, nil
}

// noise returns a uniform value in [-amp, amp).
func (g *Generator) noise(amp float64) float64 {
	return (g.rng.Float64()*2 - 1) * amp
}
