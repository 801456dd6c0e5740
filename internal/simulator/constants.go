package simulator

import "time"

// Motion model constants, in m/s² and deg/s.
const (
	standardGravity = 9.81
	stillAccelNoise = 0.002
	stillGyroNoise  = 0.05
	shakeAccelNoise = 3.0
	shakeGyroNoise  = 120.0
)

// Runner configuration constants.
const (
	DefaultSampleRate = 60
	DefaultFrameRate  = 10
	DefaultStillFor   = 4 * time.Second
	DefaultShakeFor   = 1 * time.Second
	PollInterval      = 250 * time.Millisecond
	writeTimeout      = 2 * time.Second
	maxErrorBody      = 4 << 10
)
