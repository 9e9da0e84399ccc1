package toast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/mqclients"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var (
	ProducerPublishTimeout = 5 * time.Second

	// ProducerBufferSize is how many dispatches may wait for the broker
	// before new ones are dropped.
	ProducerBufferSize = 4096
)

// ProducedPayload is the message published for every delivered dispatch.
type ProducedPayload struct {
	ShardID    int32                `json:"shard_id"`
	ShardCount int32                `json:"shard_count"`
	Type       string               `json:"type"`
	Sequence   *int64               `json:"sequence"`
	Data       toastjson.RawMessage `json:"data"`
}

// Producer publishes dispatches from the event bus to an MQClient.
type Producer struct {
	Logger zerolog.Logger

	client     mqclients.MQClient
	channel    string
	shardCount func() int32

	// Events that are delivered but not published.
	blacklist map[string]struct{}

	published *atomic.Int64
	failed    *atomic.Int64

	// Dispatches are handed to a single worker so a slow broker never holds
	// up the shard read loop emitting them.
	mu       sync.RWMutex
	messages chan producerMessage
	started  bool
	closed   bool
	done     chan struct{}
}

type producerMessage struct {
	shardID int32
	payload *discord.GatewayPayload
}

func NewProducer(logger zerolog.Logger, client mqclients.MQClient, channel string, shardCount func() int32, blacklist []string) *Producer {
	producer := &Producer{
		Logger:     logger.With().Str("producer", client.String()).Logger(),
		client:     client,
		channel:    channel,
		shardCount: shardCount,
		blacklist:  make(map[string]struct{}, len(blacklist)),
		published:  atomic.NewInt64(0),
		failed:     atomic.NewInt64(0),
		messages:   make(chan producerMessage, ProducerBufferSize),
		done:       make(chan struct{}),
	}

	for _, event := range blacklist {
		producer.blacklist[event] = struct{}{}
	}

	return producer
}

// Attach publishes every dispatch emitted on bus. Publishing happens on the
// producer's own goroutine, in the order dispatches were emitted.
func (p *Producer) Attach(bus *EventBus) {
	p.mu.Lock()
	if !p.started && !p.closed {
		p.started = true

		go p.run()
	}
	p.mu.Unlock()

	bus.On(EventDispatch, func(event Event) {
		p.enqueue(event.ShardID, event.Payload)
	})
}

func (p *Producer) enqueue(shardID int32, payload *discord.GatewayPayload) {
	if payload == nil {
		return
	}

	if _, ok := p.blacklist[payload.Type]; ok {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	select {
	case p.messages <- producerMessage{shardID: shardID, payload: payload}:
	default:
		p.failed.Inc()

		p.Logger.Warn().Str("type", payload.Type).Msg("Producer buffer is full, dropping dispatch")
	}
}

func (p *Producer) run() {
	defer close(p.done)

	for message := range p.messages {
		if err := p.Publish(context.Background(), message.shardID, message.payload); err != nil {
			p.failed.Inc()

			p.Logger.Warn().Err(err).Str("type", message.payload.Type).Msg("Failed to publish dispatch")
		}
	}
}

func (p *Producer) Publish(ctx context.Context, shardID int32, payload *discord.GatewayPayload) error {
	if payload == nil {
		return nil
	}

	if _, ok := p.blacklist[payload.Type]; ok {
		return nil
	}

	data, err := toastjson.Marshal(ProducedPayload{
		ShardID:    shardID,
		ShardCount: p.shardCount(),
		Type:       payload.Type,
		Sequence:   payload.Sequence,
		Data:       payload.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal produced payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ProducerPublishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.published.Inc()

	return nil
}

// Counts returns how many dispatches were published and how many failed.
func (p *Producer) Counts() (published, failed int64) {
	return p.published.Load(), p.failed.Load()
}

// Close publishes whatever is still buffered and then closes the client.
func (p *Producer) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true
	started := p.started

	close(p.messages)
	p.mu.Unlock()

	if started {
		<-p.done
	}

	return p.client.Close()
}
