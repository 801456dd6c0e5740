package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

const (
	mqttFeed = "mqtt"

	// DefaultTopic carries wire samples from IMU producers.
	DefaultTopic = "stillcap/motion"

	connectTimeout = 10 * time.Second
)

// Subscriber feeds samples published on an MQTT topic into the ingestor.
type Subscriber struct {
	ingest   *Ingestor
	broker   string
	clientID string
	topic    string
	qos      byte
	logger   logger.Logger

	client   mqtt.Client
	received atomic.Int64
}

// SubscriberOption applies a configuration option to the Subscriber.
type SubscriberOption func(*Subscriber)

// WithTopic sets the topic to subscribe to.
func WithTopic(topic string) SubscriberOption {
	return func(s *Subscriber) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithClientID sets the MQTT client ID.
func WithClientID(id string) SubscriberOption {
	return func(s *Subscriber) {
		if id != "" {
			s.clientID = id
		}
	}
}

// WithQoS sets the subscription QoS.
func WithQoS(qos byte) SubscriberOption {
	return func(s *Subscriber) {
		if qos <= 2 {
			s.qos = qos
		}
	}
}

// WithSubscriberLogger sets a custom logger.
func WithSubscriberLogger(l logger.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSubscriber creates a subscriber for broker, e.g. "tcp://localhost:1883".
func NewSubscriber(ingest *Ingestor, broker string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		ingest:   ingest,
		broker:   broker,
		clientID: "stillcap-service",
		topic:    DefaultTopic,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects and subscribes. The client reconnects and resubscribes on
// its own after a connection loss.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.broker == "" {
		return ErrNoBroker
	}
	opts := mqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(s.clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(s.topic, s.qos, s.handle)
			token.Wait()
			if err := token.Error(); err != nil {
				s.logger.Error(ctx, "mqtt subscribe failed", logger.String("topic", s.topic), logger.Error(err))
				return
			}
			metrics.UpdateFeedConnections(mqttFeed, 1)
			s.logger.Info(ctx, "mqtt subscribed", logger.String("topic", s.topic))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			metrics.UpdateFeedConnections(mqttFeed, 0)
			s.received.Store(0)
			s.logger.Warn(ctx, "mqtt connection lost", logger.Error(err))
		})

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to %s: timed out", s.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.broker, err)
	}
	s.logger.Info(ctx, "mqtt connected", logger.String("broker", s.broker))
	return nil
}

// Granted reports whether a sample arrived since the last (re)connect.
func (s *Subscriber) Granted() bool { return s.received.Load() > 0 }

// Close unsubscribes and disconnects.
func (s *Subscriber) Close() {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
	metrics.UpdateFeedConnections(mqttFeed, 0)
}

func (s *Subscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	ctx := context.Background()
	err := s.ingest.Ingest(ctx, mqttFeed, msg.Payload())
	switch {
	case err == nil:
		s.received.Add(1)
	case errors.Is(err, ErrDuplicateSample):
	default:
		s.logger.Debug(ctx, "mqtt sample rejected", logger.String("topic", msg.Topic()), logger.Error(err))
	}
}
