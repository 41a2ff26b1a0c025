package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"classroom-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 8

// Notifier carries change events across instances over Redis pub/sub.
// Channels are named quiz:changes:{table}:{sessionID}.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Publish(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := n.client.Publish(ctx, channelName(event.Topic()), data).Err(); err != nil {
		return fmt.Errorf("%w: publish change event: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (n *Notifier) Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.ChangeEvent, func(), error) {
	ps := n.client.Subscribe(ctx, channelName(topic))
	// wait for the subscription to be confirmed so no publish is missed after return
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("%w: subscribe: %v", domain.ErrUnavailable, err)
	}

	out := make(chan domain.ChangeEvent, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("decode change event")
					continue
				}
				deliver(out, event)
			}
		}
	}()
	return out, cancel, nil
}

// deliver drops the oldest pending event when the subscriber lags.
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

func channelName(topic domain.Topic) string {
	return "quiz:changes:" + string(topic.Table) + ":" + topic.SessionID
}
