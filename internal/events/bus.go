// Package events fans out gateway events to SSE subscribers and, when
// configured, to other gateway replicas through Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types emitted by the gateway.
const (
	TypeGerritVerified = "gerrit.verified"
)

// Event represents a domain event emitted by the gateway.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Origin    string      `json:"origin,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Bus multiplexes events to connected clients (local + Redis backed).
type Bus struct {
	client redis.UniversalClient
	logger *log.Logger
	ch     string
	origin string
	cancel context.CancelFunc

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// Options configure the bus.
type Options struct {
	Client  redis.UniversalClient
	Logger  *log.Logger
	Channel string
}

// NewBus creates a new event bus.
func NewBus(opts Options) *Bus {
	channel := opts.Channel
	if channel == "" {
		channel = "repo-gateway-events"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	bus := &Bus{
		client:      opts.Client,
		logger:      opts.Logger,
		ch:          channel,
		origin:      uuid.NewString(),
		subscribers: make(map[chan Event]struct{}),
	}
	if bus.client != nil {
		ctx, cancel := context.WithCancel(context.Background())
		bus.cancel = cancel
		go bus.observeRedis(ctx)
	}
	return bus
}

// Close stops the Redis observer.
func (b *Bus) Close() {
	if b != nil && b.cancel != nil {
		b.cancel()
	}
}

// Publish broadcasts an event to local subscribers and Redis.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Origin = b.origin

	b.broadcast(evt)

	if b.client != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if err := b.client.Publish(ctx, b.ch, payload).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
	}
	return nil
}

// Subscribe registers a subscriber and returns a channel plus a cancel func.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
			close(stop)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()

	return ch, cancel
}

func (b *Bus) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Printf("events: dropping event %s (subscriber backlog)", evt.ID)
		}
	}
}

func (b *Bus) observeRedis(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.ch)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Printf("events: redis subscriber error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}

		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			b.logger.Printf("events: invalid payload: %v", err)
			continue
		}
		// Local publishes were already broadcast.
		if evt.Origin == b.origin {
			continue
		}
		b.broadcast(evt)
	}
}
