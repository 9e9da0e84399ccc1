package toast

import (
	"sync"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/rest"
)

// EventType identifies a fleet level event.
type EventType uint8

const (
	EventDebug EventType = iota
	EventShardReady
	EventShardResume
	EventShardReconnecting
	EventShardDisconnect
	EventInvalidated
	EventClientReady
	EventDispatch
	EventRateLimit
	EventInvalidRequestWarning
	EventAPIRequest
	EventAPIResponse
)

func (t EventType) String() string {
	return []string{
		"DEBUG",
		"SHARD_READY",
		"SHARD_RESUME",
		"SHARD_RECONNECTING",
		"SHARD_DISCONNECT",
		"INVALIDATED",
		"CLIENT_READY",
		"DISPATCH",
		"RATE_LIMIT",
		"INVALID_REQUEST_WARNING",
		"API_REQUEST",
		"API_RESPONSE",
	}[t]
}

// Event carries the fields relevant to its Type. ShardID is -1 for events
// that do not belong to a shard.
type Event struct {
	Type    EventType
	ShardID int32

	Message string

	// Close code for EventShardDisconnect.
	Code int

	// Guilds that were still unavailable for EventShardReady.
	UnavailableGuilds []discord.Snowflake

	// Events replayed by the gateway for EventShardResume.
	Replayed int64

	Payload *discord.GatewayPayload

	RateLimit *rest.RateLimitData
	Warning   *rest.InvalidRequestWarning
	Request   *rest.RequestData
	Response  *rest.ResponseData
}

type EventHandler func(event Event)

// EventBus is a callback registry. Handlers run synchronously on the
// goroutine that emitted the event, in registration order.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// On registers a handler for an event type.
func (b *EventBus) On(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Has returns true if at least one handler is registered for the event type.
func (b *EventBus) Has(eventType EventType) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[eventType]) > 0
}

func (b *EventBus) Emit(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// RESTHooks returns pipeline hooks that forward to the bus.
func (b *EventBus) RESTHooks() rest.Hooks {
	return rest.Hooks{
		RateLimit: func(data rest.RateLimitData) {
			b.Emit(Event{Type: EventRateLimit, ShardID: -1, RateLimit: &data})
		},
		InvalidRequestWarning: func(warning rest.InvalidRequestWarning) {
			b.Emit(Event{Type: EventInvalidRequestWarning, ShardID: -1, Warning: &warning})
		},
		APIRequest: func(data rest.RequestData) {
			b.Emit(Event{Type: EventAPIRequest, ShardID: -1, Request: &data})
		},
		APIResponse: func(data rest.ResponseData) {
			b.Emit(Event{Type: EventAPIResponse, ShardID: -1, Response: &data})
		},
	}
}
