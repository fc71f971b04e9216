package positionsource

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"trackpoint/location-agent/internal/model"
)

// positionPayload is the schema a position provider publishes on the
// stream topic.
type positionPayload struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// Source subscribes to the position stream and pushes decoded samples into
// the sink. The stream may stop and restart; paho's automatic reconnect
// re-establishes the subscription.
type Source struct {
	logger *slog.Logger
	broker string
	topic  string
	sink   func(model.PositionSample)
	client mqtt.Client
}

// New constructs a position source reading from the given broker and topic.
func New(broker, topic string, sink func(model.PositionSample), logger *slog.Logger) *Source {
	return &Source{
		logger: logger,
		broker: broker,
		topic:  topic,
		sink:   sink,
	}
}

// Start connects to the broker and subscribes to the position topic.
func (s *Source) Start() error {
	clientID := fmt.Sprintf("trackpoint-agent-%d", time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(s.broker).SetClientID(clientID)
	opts = opts.SetOrderMatters(false).SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect position broker: %w", token.Error())
	}

	if token := client.Subscribe(s.topic, 0, s.handleMessage); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}

	s.client = client
	s.logger.Info("position source connected", "broker", s.broker, "topic", s.topic)
	return nil
}

// Stop disconnects from the broker.
func (s *Source) Stop() {
	if s.client == nil {
		return
	}
	s.client.Disconnect(250)
	s.client = nil
	s.logger.Info("position source disconnected")
}

func (s *Source) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var payload positionPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		s.logger.Warn("position payload decode failed", "topic", msg.Topic(), "error", err)
		return
	}

	observedAt := payload.Timestamp
	if observedAt == "" {
		observedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	sample := model.PositionSample{
		Latitude:   payload.Latitude,
		Longitude:  payload.Longitude,
		Accuracy:   payload.Accuracy,
		ObservedAt: observedAt,
	}

	if err := sample.Validate(); err != nil {
		s.logger.Warn("position payload validation failed", "topic", msg.Topic(), "error", err)
		return
	}

	s.sink(sample)
}
