package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"booking-service/internal/application"
	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/logx"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	_ application.Publisher  = (*Publisher)(nil)
	_ application.Subscriber = (*Subscriber)(nil)
)

// Publisher sends booking events on a Redis pub/sub channel. Every subscribed
// instance receives each message, the sender included.
type Publisher struct {
	Client  redis.Cmdable
	Channel string
}

func NewPublisher(client redis.Cmdable, channel string) *Publisher {
	return &Publisher{Client: client, Channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.BookingEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.Client.Publish(ctx, p.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.Channel, err)
	}
	return nil
}

type Subscriber struct {
	Client  *redis.Client
	Channel string
	// Backoff paces subscribe attempts while Redis is unreachable.
	Backoff func() backoff.BackOff
}

func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	return &Subscriber{Client: client, Channel: channel, Backoff: defaultBackoff}
}

// Subscribe blocks until ctx is done. The first subscription is retried until
// Redis answers; after that go-redis reconnects on its own. Messages sent while
// the subscription is down are lost, so a late subscription reports one
// change to make the caller drop whatever it cached meanwhile.
func (s *Subscriber) Subscribe(ctx context.Context, fn func(context.Context, domain.BookingEvent)) error {
	log := logx.L().With(zap.String("transport", "redis"), zap.String("channel", s.Channel))
	ps, retried, err := s.subscribe(ctx, log)
	if err != nil {
		return err
	}
	defer ps.Close()
	if retried {
		fn(ctx, domain.BookingEvent{})
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.BookingEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				// still a change notification, just not a readable one
				log.Warn("invalidation.decode_failed", zap.Error(err))
			}
			fn(ctx, ev)
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context, log *zap.Logger) (*redis.PubSub, bool, error) {
	newBackoff := s.Backoff
	if newBackoff == nil {
		newBackoff = defaultBackoff
	}
	bo := backoff.WithContext(newBackoff(), ctx)
	retried := false
	for {
		ps := s.Client.Subscribe(ctx, s.Channel)
		_, err := ps.Receive(ctx)
		if err == nil {
			return ps, retried, nil
		}
		_ = ps.Close()
		if ctx.Err() != nil {
			return nil, retried, ctx.Err()
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, retried, fmt.Errorf("redis subscribe %s: %w", s.Channel, err)
		}
		log.Warn("invalidation.subscribe_failed", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return nil, retried, ctx.Err()
		case <-time.After(wait):
		}
		retried = true
	}
}

func defaultBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}
