package ingestion

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/internal/models"
	"github.com/meshtree/internal/storage"
)

// Subscriber is the part of the MQTT client the service needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Forwarder receives every accepted record, e.g. the websocket hub.
type Forwarder interface {
	Publish(rec models.Record)
}

// Service archives sample records published by border routers.
type Service struct {
	sub     Subscriber
	store   storage.Storage
	forward Forwarder
	topic   string
	log     *zap.Logger
}

// New subscribes under prefix (e.g. "iot/sensors") once Start is called.
func New(sub Subscriber, store storage.Storage, prefix string) *Service {
	return &Service{
		sub:   sub,
		store: store,
		topic: prefix + "/#",
		log:   logger.Named("ingestion"),
	}
}

// WithForwarder also hands accepted records to f.
func (s *Service) WithForwarder(f Forwarder) *Service {
	s.forward = f
	return s
}

func (s *Service) Start() error {
	if err := s.sub.Subscribe(s.topic, 0, s.handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	s.log.Info("ingestion listening", zap.String("topic", s.topic))
	return nil
}

func (s *Service) handle(_ mqtt.Client, msg mqtt.Message) {
	if err := s.Ingest(msg.Payload()); err != nil {
		s.log.Warn("rejected record", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// Ingest archives one JSON record.
func (s *Service) Ingest(payload []byte) error {
	var rec models.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.store.Persist(rec); err != nil {
		return fmt.Errorf("persist %s/%s: %w", rec.DeviceID, rec.MetricName, err)
	}
	metrics.RecordIngested(rec.MetricName)
	s.log.Debug("stored record",
		zap.String("device_id", rec.DeviceID),
		zap.String("metric", rec.MetricName),
		zap.Float64("value", rec.Value))
	if s.forward != nil {
		s.forward.Publish(rec)
	}
	return nil
}
