package pkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes ticket events to a Kafka topic. Messages are keyed by
// tenant so a tenant's events stay ordered within one partition.
type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m := kafkaMessage(topic, msg)
	if p.Writer.Topic != "" {
		m.Topic = ""
	}
	if err := p.Writer.WriteMessages(ctx, m); err != nil {
		return fmt.Errorf("cannot write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}

// KafkaSubscriber consumes a topic with one reader per subscription. Every
// instance uses its own consumer group so each sees the whole stream.
type KafkaSubscriber struct {
	brokers []string
	groupID string
	logger  apt.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

func NewKafkaSubscriber(brokers []string, groupID string, logger apt.Logger) *KafkaSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &KafkaSubscriber{
		brokers: brokers,
		groupID: groupID,
		logger:  logger,
	}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if len(s.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.brokers,
		Topic:       topic,
		GroupID:     s.groupID,
		StartOffset: kafka.LastOffset,
	})

	s.mu.Lock()
	s.readers = append(s.readers, reader)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					s.logger.Error("kafka read failed", "topic", topic, "error", err)
				}
				return
			}
			if err := handler(ctx, m.Value); err != nil {
				s.logger.Error("kafka handler failed", "topic", topic, "error", err)
			}
		}
	}()

	s.logger.Info("subscribed to kafka topic", "topic", topic, "group_id", s.groupID)
	return nil
}

func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	readers := s.readers
	s.readers = nil
	s.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}

func kafkaMessage(topic string, msg []byte) kafka.Message {
	var keyed struct {
		TenantID string `json:"tenant_id"`
	}
	_ = json.Unmarshal(msg, &keyed)

	return kafka.Message{
		Topic: topic,
		Key:   []byte(keyed.TenantID),
		Value: msg,
	}
}
