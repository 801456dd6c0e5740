package simulator

import "os"

// ShowHelp prints usage information for the motion simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Stillcap Motion Simulator
=========================

Streams synthetic phone motion and camera frames to a capture station,
optionally runs a session to completion and checks the stored stills.

Usage:
  go run ./cmd/motion-sim [options]

Options:
  -url string
        Base URL of the station (default "http://localhost:9080")
  -duration duration
        Maximum time to stream (default 2m)
  -rate int
        Motion samples per second (default 60)
  -fps int
        Camera frames per second, 0 disables the camera feed (default 10)
  -still duration
        Length of each still phase (default 4s)
  -shake duration
        Length of each shake phase, 0 keeps the phone still (default 1s)
  -linear
        Report linear acceleration instead of acceleration including gravity
  -seed uint
        Noise seed, 0 picks one from the clock
  -start
        Start a session once the feeds are flowing (default true)
  -timeout duration
        HTTP request timeout (default 30s)
  -verbose
        Log every session poll and stored frame
  -help
        Show this help message

Examples:
  # Drive one session against a local station
  go run ./cmd/motion-sim

  # Stream a jittery phone for five minutes and start from the dashboard
  go run ./cmd/motion-sim -start=false -duration 5m -still 2s -shake 2s
`)
}
