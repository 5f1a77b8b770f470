// Package ingest consumes raw position telemetry from an MQTT broker and
// feeds it into the position store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/service"
)

var (
	positionsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackd_positions_ingested_total",
		Help: "Position samples accepted from the telemetry stream.",
	})
	positionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackd_positions_rejected_total",
		Help: "Position samples dropped due to decode or store errors.",
	})
)

// sample is the wire form of one telemetry message.
type sample struct {
	UniqueID  string    `json:"unique_id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Speed     float64   `json:"speed"`
	Valid     bool      `json:"valid"`
}

// Subscriber streams positions from an MQTT topic into the service.
type Subscriber struct {
	svc    *service.Service
	broker string
	topic  string
	client mqtt.Client
}

// NewSubscriber creates a subscriber for the given broker URL and topic.
func NewSubscriber(svc *service.Service, broker, topic string) *Subscriber {
	return &Subscriber{svc: svc, broker: broker, topic: topic}
}

// Start connects and subscribes. Messages are processed on the client's
// delivery goroutine; each sample is one store transaction.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(fmt.Sprintf("trackd-ingest-%d", time.Now().UnixNano())).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	token := s.client.Subscribe(s.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		s.handle(ctx, msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %q: %w", s.topic, token.Error())
	}

	log.WithFields(log.Fields{"broker": s.broker, "topic": s.topic}).Info("telemetry ingest started")
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}

func (s *Subscriber) handle(ctx context.Context, payload []byte) {
	var in sample
	if err := json.Unmarshal(payload, &in); err != nil {
		positionsRejected.Inc()
		log.WithError(err).Warn("dropping malformed telemetry message")
		return
	}
	if in.UniqueID == "" {
		positionsRejected.Inc()
		log.Warn("dropping telemetry message without unique id")
		return
	}

	_, err := s.svc.RecordPosition(ctx, in.UniqueID, models.Position{
		Time:      in.Time,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Altitude:  in.Altitude,
		Speed:     in.Speed,
		Valid:     in.Valid,
	})
	if err != nil {
		positionsRejected.Inc()
		log.WithError(err).WithField("unique_id", in.UniqueID).Warn("failed to record position")
		return
	}
	positionsIngested.Inc()
}
