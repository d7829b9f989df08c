// Package kafka carries booking events over a Kafka topic. Each service
// instance reads the topic in a consumer group of its own, so every instance
// sees every event.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/application"
	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/logx"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const HeaderAction = "booking-action"

var (
	_ application.Publisher  = (*Publisher)(nil)
	_ application.Subscriber = (*Subscriber)(nil)

	ErrNoBrokers  = errors.New("kafka: at least one broker is required")
	ErrEmptyTopic = errors.New("kafka: topic cannot be empty")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger:  kafkaErrorLogger("writer"),
	}
	return &Publisher{writer: w, topic: topic}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev domain.BookingEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(ev.BookingID),
		Value:   value,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: HeaderAction, Value: []byte(ev.Action)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.writer.Close() }

type Subscriber struct {
	reader  messageReader
	topic   string
	groupID string
	backoff func() backoff.BackOff
}

// NewSubscriber joins a fresh consumer group named groupPrefix plus a random
// suffix, starting at the newest offset: a restarted instance has an empty
// cache and needs no history.
func NewSubscriber(brokers []string, topic, groupPrefix string) (*Subscriber, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	groupID := groupPrefix + "-" + uuid.NewString()
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.LastOffset,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		ErrorLogger:    kafkaErrorLogger("reader"),
	})
	return &Subscriber{reader: r, topic: topic, groupID: groupID, backoff: defaultBackoff}, nil
}

func (s *Subscriber) GroupID() string { return s.groupID }

func (s *Subscriber) Subscribe(ctx context.Context, fn func(context.Context, domain.BookingEvent)) error {
	log := logx.L().With(zap.String("transport", "kafka"), zap.String("topic", s.topic), zap.String("group_id", s.groupID))
	bo := backoff.WithContext(s.backoff(), ctx)
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				return fmt.Errorf("kafka fetch %s: %w", s.topic, err)
			}
			log.Warn("invalidation.fetch_failed", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		ev, err := decode(msg)
		if err != nil {
			log.Warn("invalidation.decode_failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
		fn(ctx, ev)
		if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Warn("invalidation.commit_failed", zap.Error(err))
		}
	}
}

func (s *Subscriber) Close() error { return s.reader.Close() }

// decode falls back to the message key and action header when the value is
// not a readable event.
func decode(msg kafka.Message) (domain.BookingEvent, error) {
	var ev domain.BookingEvent
	err := json.Unmarshal(msg.Value, &ev)
	if err == nil {
		return ev, nil
	}
	ev = domain.BookingEvent{BookingID: string(msg.Key), OccurredAt: msg.Time}
	for _, h := range msg.Headers {
		if h.Key == HeaderAction {
			ev.Action = domain.BookingAction(h.Value)
		}
	}
	return ev, err
}

func defaultBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

func kafkaErrorLogger(component string) kafka.LoggerFunc {
	return func(msg string, args ...any) {
		logx.L().Warn("kafka."+component+"_error", zap.String("detail", fmt.Sprintf(msg, args...)))
	}
}
