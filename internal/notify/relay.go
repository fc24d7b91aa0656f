package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gofolio/internal/logger"
)

const relayPublishTimeout = 2 * time.Second

// relayMessage is the wire format on the relay channel.
type relayMessage struct {
	Origin   string   `json:"origin"`
	Category Category `json:"category"`
}

// RedisRelay mirrors change signals between processes sharing a Redis
// channel. Local publishes are forwarded; signals from other origins are
// delivered locally without being forwarded again.
type RedisRelay struct {
	client   *redis.Client
	channel  string
	origin   string
	notifier *Notifier
	logger   logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisRelay creates a relay for n. Call Start to begin relaying.
func NewRedisRelay(client *redis.Client, channel string, n *Notifier, log logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisRelay{
		client:   client,
		channel:  channel,
		origin:   uuid.NewString(),
		notifier: n,
		logger:   log.With(logger.String("component", "notify_relay")),
	}
}

// Origin returns the identifier stamped on messages from this process.
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Start subscribes to the relay channel and registers the relay as a
// forwarder on the notifier. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		return errors.New("relay already started")
	}

	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.pubsub = ps
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.receiveLoop(loopCtx, ps.Channel())
	r.notifier.AddForwarder(r.forward)

	r.logger.Info("Change relay started", logger.String("channel", r.channel), logger.String("origin", r.origin))
	return nil
}

// Stop closes the subscription and waits for the receive loop to exit.
func (r *RedisRelay) Stop() error {
	r.mu.Lock()
	ps, cancel, done := r.pubsub, r.cancel, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if ps == nil {
		return nil
	}
	cancel()
	err := ps.Close()
	<-done
	return err
}

func (r *RedisRelay) receiveLoop(ctx context.Context, ch <-chan *redis.Message) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.logger.Warn("Dropping malformed relay message", logger.Error(err))
		return
	}
	if m.Origin == r.origin || m.Category == "" {
		return
	}
	r.notifier.Deliver(m.Category)
}

// forward runs after local delivery; failures are logged, never retried.
func (r *RedisRelay) forward(category Category) {
	r.mu.Lock()
	running := r.pubsub != nil
	r.mu.Unlock()
	if !running {
		return
	}

	data, err := json.Marshal(relayMessage{Origin: r.origin, Category: category})
	if err != nil {
		r.logger.Error("Encode relay message", logger.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("Relay publish failed",
			logger.String("category", string(category)),
			logger.Error(err),
		)
	}
}
