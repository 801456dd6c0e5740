package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/internal/simulator"
	"github.com/okian/stillcap/pkg/logger"
)

// Default configuration constants.
const (
	defaultDuration = 2 * time.Minute
	defaultTimeout  = 30 * time.Second
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the station")
		duration = flag.Duration("duration", defaultDuration, "Maximum time to stream")
		rate     = flag.Int("rate", simulator.DefaultSampleRate, "Motion samples per second")
		fps      = flag.Int("fps", simulator.DefaultFrameRate, "Camera frames per second, 0 disables the camera feed")
		still    = flag.Duration("still", simulator.DefaultStillFor, "Length of each still phase")
		shake    = flag.Duration("shake", simulator.DefaultShakeFor, "Length of each shake phase")
		linear   = flag.Bool("linear", false, "Report linear acceleration")
		seed     = flag.Uint64("seed", 0, "Noise seed, 0 picks one from the clock")
		start    = flag.Bool("start", true, "Start a session once the feeds are flowing")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mode := model.GravityIncluded
	if *linear {
		mode = model.GravityExcluded
	}
	cfg := &simulator.Config{
		BaseURL:    *baseURL,
		Duration:   *duration,
		SampleRate: *rate,
		FrameRate:  *fps,
		StillFor:   *still,
		ShakeFor:   *shake,
		Mode:       mode,
		Seed:       *seed,
		Timeout:    *timeout,
		AutoStart:  *start,
		Verbose:    *verbose,
	}

	if _, err := simulator.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
