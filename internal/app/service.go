// Package service wires the capture pipeline: sensor and camera feeds, the
// session controller, the frame driver and the display stream.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/stillcap/internal/adapters/capture"
	"github.com/okian/stillcap/internal/adapters/display"
	"github.com/okian/stillcap/internal/adapters/http/api"
	"github.com/okian/stillcap/internal/adapters/mq/queue"
	"github.com/okian/stillcap/internal/adapters/mq/worker"
	"github.com/okian/stillcap/internal/adapters/repository"
	"github.com/okian/stillcap/internal/adapters/sensor"
	"github.com/okian/stillcap/internal/config"
	"github.com/okian/stillcap/internal/domain/dedupe"
	"github.com/okian/stillcap/internal/domain/motion"
	"github.com/okian/stillcap/internal/domain/scoring"
	"github.com/okian/stillcap/internal/domain/session"
	"github.com/okian/stillcap/internal/domain/startup"
	"github.com/okian/stillcap/pkg/logger"
)

const dispatcherShutdownTimeout = 5 * time.Second

// Service owns every component of one capture station.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	buffer     *motion.Buffer
	scorer     *scoring.DeltaScorer
	controller *session.Controller
	driver     *FrameDriver

	// Feeds
	ingest  *sensor.Ingestor
	deduper dedupe.Deduper
	sensors *sensor.Handler
	mqtt    *sensor.Subscriber
	frames  *capture.LatestFrame
	camera  *capture.CameraHandler

	// Captures
	store     *repository.MemoryStore
	collector *capture.Collector

	// Display pipeline
	observations *queue.InMemoryQueue
	dispatcher   *worker.Dispatcher
	hub          *display.Hub

	// State
	started   bool
	stopped   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds every component. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    config.New(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cfg := s.cfg

	s.buffer = motion.NewBuffer()
	s.scorer = scoring.NewDeltaScorer(scoring.WithWeights(cfg.AccelWeight, cfg.GyroWeight))

	s.deduper = dedupe.NewWindow(dedupe.WithWindow(cfg.DedupeWindow))
	s.ingest = sensor.NewIngestor(s.buffer,
		sensor.WithGravityMode(cfg.GravityMode()),
		sensor.WithDeduper(s.deduper),
		sensor.WithHandover(cfg.SourceHandover()),
		sensor.WithLogger(s.logger.Named("sensor")),
	)
	s.sensors = sensor.NewHandler(s.ingest, sensor.WithHandlerLogger(s.logger.Named("sensor")))
	grants := sensor.AnyGranted{s.sensors}
	if cfg.MQTTBroker != "" {
		s.mqtt = sensor.NewSubscriber(s.ingest, cfg.MQTTBroker,
			sensor.WithTopic(cfg.MQTTTopic),
			sensor.WithClientID(cfg.MQTTClientID),
			sensor.WithQoS(1),
			sensor.WithSubscriberLogger(s.logger.Named("mqtt")),
		)
		grants = append(grants, s.mqtt)
	}

	s.frames = capture.NewLatestFrame()
	s.camera = capture.NewCameraHandler(s.frames, capture.WithCameraLogger(s.logger.Named("camera")))
	s.store = repository.NewMemoryStore(repository.WithMaxFrames(cfg.MaxStoredFrames))
	clock := &TickClock{}
	s.collector = capture.NewCollector(s.frames, s.store,
		capture.WithClock(clock.Now),
		capture.WithLogger(s.logger.Named("capture")),
	)

	s.observations = queue.NewInMemoryQueue(queue.WithCapacity(cfg.ObservationQueueSize))
	s.hub = display.NewHub(display.WithLogger(s.logger.Named("display")))
	s.dispatcher = worker.NewDispatcher(s.observations, s.hub,
		worker.WithName("display"),
		worker.WithLogger(s.logger.Named("dispatcher")),
	)

	checks := []startup.Check{startup.PermissionCheck{Grants: grants}}
	if cfg.RequireCamera {
		checks = append(checks, startup.CameraCheck{Frames: s.frames, Timeout: cfg.CameraTimeout()})
	}
	checks = append(checks, startup.LivenessCheck{Samples: s.buffer, Timeout: cfg.LivenessTimeout()})
	seq := startup.NewSequence(
		startup.WithChecks(checks...),
		startup.WithLogger(s.logger.Named("startup")),
	)

	s.controller = session.New(s.buffer, s.scorer, s.collector, seq,
		session.WithSettings(cfg.Settings()),
		session.WithDisplaySink(s.observations),
		session.WithLogger(s.logger.Named("session")),
	)
	s.driver = NewFrameDriver(s.controller, cfg.FrameInterval(), WithTickClock(clock))
	return s
}

// Start launches the frame driver, the display dispatcher and the MQTT feed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}
	s.logger.Info(ctx, "starting capture service...")

	if s.mqtt != nil {
		if err := s.mqtt.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt feed: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.dispatcher.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.driver.Run(runCtx)
	}()

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "capture service started",
		logger.Duration("frame_interval", s.cfg.FrameInterval()),
		logger.String("scorer", scoring.Version),
		logger.String("acceleration", s.cfg.GravityMode().String()),
		logger.Bool("mqtt", s.mqtt != nil),
	)
	return nil
}

// Stop ends any running session and shuts the pipeline down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping capture service...")

	_ = s.controller.Stop()
	if s.mqtt != nil {
		s.mqtt.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, dispatcherShutdownTimeout)
	defer cancel()
	if err := s.dispatcher.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "dispatcher shutdown", logger.Error(err))
	}
	s.cancel()
	s.wg.Wait()
	_ = s.observations.Close()

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "capture service stopped")
}

// Controller returns the session controller.
func (s *Service) Controller() *session.Controller { return s.controller }

// Store returns the captured frame store.
func (s *Service) Store() *repository.MemoryStore { return s.store }

// Buffer returns the motion buffer.
func (s *Service) Buffer() *motion.Buffer { return s.buffer }

// Frames returns the latest camera frame holder.
func (s *Service) Frames() *capture.LatestFrame { return s.frames }

// Feeds returns the websocket endpoints for the API.
func (s *Service) Feeds() api.Feeds {
	return api.Feeds{Sensors: s.sensors, Camera: s.camera, Observations: s.hub}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":          s.started,
		"state":            s.controller.State().String(),
		"scorer":           scoring.Version,
		"captures":         s.store.Count(ctx),
		"samples":          s.buffer.Seq(),
		"camera_frames":    s.frames.Seq(),
		"sensor_clients":   s.sensors.Connected(),
		"camera_clients":   s.camera.Connected(),
		"dedupe_size":      s.deduper.Size(),
		"observation_lag":  s.observations.Len(ctx),
		"display":          s.hub.GetStats(),
		"frame_interval_s": s.cfg.FrameInterval().Seconds(),
	}
	if s.started {
		stats["uptime_seconds"] = time.Since(s.startedAt).Seconds()
	}
	return stats
}
