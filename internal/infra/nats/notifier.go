package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 8

// Config holds connection settings for the NATS change feed.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns defaults for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "quiz.changes",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Notifier publishes change events on core NATS subjects
// {prefix}.{table}.{sessionID}. Core NATS is at-most-once, which matches the
// advisory nature of change events.
type Notifier struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials NATS and returns a notifier that owns the connection.
func Connect(cfg Config) (*Notifier, error) {
	opts := []nats.Option{
		nats.Name("classroom-quiz-service"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNotifier(nc, cfg.SubjectPrefix), nil
}

func NewNotifier(nc *nats.Conn, prefix string) *Notifier {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Notifier{nc: nc, prefix: prefix}
}

func (n *Notifier) Publish(_ context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := n.nc.Publish(n.subject(event.Topic()), data); err != nil {
		return fmt.Errorf("%w: publish change event: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (n *Notifier) Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.ChangeEvent, func(), error) {
	out := make(chan domain.ChangeEvent, subscriberBuffer)
	var mu sync.Mutex
	closed := false

	sub, err := n.nc.Subscribe(n.subject(topic), func(msg *nats.Msg) {
		event, ok := decode(msg)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		deliver(out, event)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: subscribe: %v", domain.ErrUnavailable, err)
	}
	// make sure the server knows about the subscription before returning
	if err := n.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("%w: flush subscription: %v", domain.ErrUnavailable, err)
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := sub.Unsubscribe(); err != nil {
				log.Debug().Err(err).Str("subject", sub.Subject).Msg("unsubscribe")
			}
			mu.Lock()
			closed = true
			close(out)
			mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return out, cancel, nil
}

// Close drains the connection.
func (n *Notifier) Close() error {
	return n.nc.Drain()
}

func (n *Notifier) subject(topic domain.Topic) string {
	return n.prefix + "." + string(topic.Table) + "." + topic.SessionID
}

func decode(msg *nats.Msg) (domain.ChangeEvent, bool) {
	var event domain.ChangeEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("decode change event")
		return domain.ChangeEvent{}, false
	}
	return event, true
}

func deliver(ch chan domain.ChangeEvent, event domain.ChangeEvent) {
	select {
	case ch <- event:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- event
	}
}
