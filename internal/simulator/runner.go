package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/stillcap/pkg/logger"
)

const (
	stateStopped      = "stopped"
	codeSessionActive = "session_active"
)

// Run streams simulated feeds to the station and, with AutoStart, drives one
// session to completion before verifying its captures.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("simulator")

	log.Info(ctx, "starting motion simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Duration("duration", cfg.Duration),
		logger.Int("sampleRate", cfg.SampleRate),
		logger.Int("frameRate", cfg.FrameRate),
		logger.Duration("still", cfg.StillFor),
		logger.Duration("shake", cfg.ShakeFor),
		logger.Bool("autoStart", cfg.AutoStart))

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check station health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("station health check failed: %w", err)
	}

	// Step 2: Open feeds and start streaming
	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	n := &counters{}
	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	sensorConn, err := client.Dial(runCtx, "/ws/sensors")
	if err != nil {
		return stats, err
	}
	defer closeConn(sensorConn)
	gen := NewGenerator(cfg)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- streamSamples(runCtx, sensorConn, gen, cfg.SampleRate, n)
	}()

	if cfg.FrameRate > 0 {
		cameraConn, err := client.Dial(runCtx, "/ws/camera")
		if err != nil {
			cancel()
			wg.Wait()
			return stats, err
		}
		defer closeConn(cameraConn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- streamFrames(runCtx, cameraConn, cfg.FrameRate, n)
		}()
	}
	log.Info(ctx, "feeds streaming", logger.String("device", gen.Device()))

	// Step 3: Start a session and follow it
	runErr := follow(runCtx, cfg, client, stats, log)

	// Step 4: Stop streaming
	cancel()
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil && runErr == nil {
			runErr = fmt.Errorf("feed failed: %w", err)
		}
	}
	stats.SamplesSent = int(n.samples.Load())
	stats.StillSamples = int(n.still.Load())
	stats.ShakeSamples = int(n.shake.Load())
	stats.FramesSent = int(n.frames.Load())
	if runErr != nil {
		return stats, runErr
	}

	// Step 5: Verify results
	if stats.SessionStarts > 0 {
		if err := verifyCaptures(ctx, client, stats, cfg.Verbose); err != nil {
			return stats, fmt.Errorf("capture verification failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)
	return stats, nil
}

// follow starts a session when asked to and polls it until it stops or the
// run window closes.
func follow(ctx context.Context, cfg *Config, client *Client, stats *Stats, log logger.Logger) error {
	if cfg.AutoStart {
		// Give the station a sample and a frame to count as live.
		if err := sleep(ctx, PollInterval); err != nil {
			return nil
		}
		st, err := client.StartSession(ctx)
		switch {
		case IsAPIError(err, codeSessionActive):
			log.Warn(ctx, "a session is already running; following it")
		case err != nil:
			return fmt.Errorf("session start failed: %w", err)
		default:
			stats.SessionStarts++
			log.Info(ctx, "session started",
				logger.String("session", st.SessionID),
				logger.Int("target", st.Settings.TargetCount),
				logger.Float64("threshold", st.Settings.Threshold))
		}
	}

	for {
		if err := sleep(ctx, PollInterval); err != nil {
			return nil
		}
		st, err := client.Session(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("session poll failed: %w", err)
		}
		stats.FinalState = st.State
		stats.Captures = st.Stats.CaptureCount
		if cfg.Verbose {
			log.Info(ctx, "session",
				logger.String("state", st.State),
				logger.Int("captures", st.Stats.CaptureCount),
				logger.Float64("scoreMin", st.Stats.ScoreMin),
				logger.Float64("scoreMax", st.Stats.ScoreMax))
		}
		if cfg.AutoStart && st.State == stateStopped {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var samplesPerSecond float64
	if stats.Duration > 0 {
		samplesPerSecond = float64(stats.SamplesSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("samplesSent", stats.SamplesSent),
		logger.Int("stillSamples", stats.StillSamples),
		logger.Int("shakeSamples", stats.ShakeSamples),
		logger.Int("framesSent", stats.FramesSent),
		logger.Int("captures", stats.Captures),
		logger.String("finalState", stats.FinalState),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("samplesPerSecond", samplesPerSecond))
}

// IsAPIError reports whether err carries a station error code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
