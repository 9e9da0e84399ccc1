package toast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/rest"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"nhooyr.io/websocket"
)

type fakeResolver struct {
	gateway *discord.GatewayBotResponse
	err     error
	calls   *atomic.Int64
}

func (r *fakeResolver) GetGatewayBot(context.Context) (*discord.GatewayBotResponse, error) {
	r.calls.Inc()

	if r.err != nil {
		return nil, r.err
	}

	gateway := *r.gateway

	return &gateway, nil
}

// autoGateway answers identify with READY and resume with RESUMED.
type autoGateway struct {
	*fakeGateway

	identifies *atomic.Int64
	resumes    *atomic.Int64

	// Closes the connection of a shard with this code instead of READY.
	rejectCode websocket.StatusCode

	// Closes the connection with this code instead of RESUMED.
	rejectResumeCode websocket.StatusCode

	// Runs after READY was sent.
	afterReady func(conn *fakeConn, shardID int32)

	// Guilds listed as unavailable in the READY of a shard.
	readyGuilds func(shardID int32) []discord.Snowflake
}

func newAutoGateway(t *testing.T, configure func(*autoGateway)) *autoGateway {
	t.Helper()

	gateway := &autoGateway{
		identifies: atomic.NewInt64(0),
		resumes:    atomic.NewInt64(0),
	}

	if configure != nil {
		configure(gateway)
	}

	gateway.fakeGateway = newFakeGateway(t, func(fake *fakeGateway) {
		fake.onPayload = gateway.onPayload
	})

	return gateway
}

func (g *autoGateway) onPayload(conn *fakeConn, payload *discord.GatewayPayload) {
	switch payload.Op {
	case discord.GatewayOpIdentify:
		g.identifies.Inc()

		var identify discord.Identify

		if err := toastjson.Unmarshal(payload.Data, &identify); err != nil {
			return
		}

		if g.rejectCode != 0 {
			conn.closeWith(g.rejectCode)

			return
		}

		shardID := identify.Shard[0]

		var guilds []discord.Snowflake
		if g.readyGuilds != nil {
			guilds = g.readyGuilds(shardID)
		}

		conn.dispatch(discord.EventReady, readyPayload(fmt.Sprintf("session-%d", shardID), g.URL(), guilds...))

		if g.afterReady != nil {
			g.afterReady(conn, shardID)
		}
	case discord.GatewayOpResume:
		g.resumes.Inc()

		if g.rejectResumeCode != 0 {
			conn.closeWith(g.rejectResumeCode)

			return
		}

		conn.dispatch(discord.EventResumed, map[string]any{})
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func recordEvents(bus *EventBus) *eventRecorder {
	recorder := &eventRecorder{}

	record := func(format string, args ...any) {
		recorder.mu.Lock()
		recorder.events = append(recorder.events, fmt.Sprintf(format, args...))
		recorder.mu.Unlock()
	}

	bus.On(EventDispatch, func(event Event) {
		var data struct {
			Content string `json:"content"`
		}

		_ = toastjson.Unmarshal(event.Payload.Data, &data)

		if data.Content != "" {
			record("dispatch %d %s %s", event.ShardID, event.Payload.Type, data.Content)
		} else {
			record("dispatch %d %s", event.ShardID, event.Payload.Type)
		}
	})

	bus.On(EventClientReady, func(Event) { record("client_ready") })
	bus.On(EventShardReconnecting, func(event Event) { record("reconnecting %d", event.ShardID) })
	bus.On(EventShardDisconnect, func(event Event) { record("disconnect %d %d", event.ShardID, event.Code) })
	bus.On(EventInvalidated, func(Event) { record("invalidated") })

	return recorder
}

func (r *eventRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

func (r *eventRecorder) count(event string) int {
	count := 0

	for _, recorded := range r.snapshot() {
		if recorded == event {
			count++
		}
	}

	return count
}

func newTestManager(t *testing.T, gatewayURL string, shardCount int32, modify func(*ManagerOptions, *fakeResolver)) (*Manager, *fakeResolver, *eventRecorder) {
	t.Helper()

	resolver := &fakeResolver{
		gateway: &discord.GatewayBotResponse{
			URL:    gatewayURL,
			Shards: shardCount,
			SessionStartLimit: discord.SessionStartLimit{
				Total:          1000,
				Remaining:      1000,
				MaxConcurrency: 1,
			},
		},
		calls: atomic.NewInt64(0),
	}

	options := ManagerOptions{
		Logger:     zerolog.Nop(),
		Identifier: "test",
		Token:      "token",
		ShardCount: shardCount,
		Identify: IdentifyOptions{
			Intents: discord.IntentGuilds,
		},
		WaitGuildTimeout: time.Second,
		CloseTimeout:     time.Second,
		SpawnDelay:       50 * time.Millisecond,
		ReconnectBackoff: 50 * time.Millisecond,
	}

	if modify != nil {
		modify(&options, resolver)
	}

	bus := NewEventBus()
	recorder := recordEvents(bus)

	manager := NewManager(options, resolver, bus)

	t.Cleanup(manager.Destroy)

	return manager, resolver, recorder
}

func requireManagerReady(t *testing.T, manager *Manager) {
	t.Helper()

	require.Eventually(t, func() bool { return manager.Status() == ManagerStatusReady }, fakeTimeout, 10*time.Millisecond)
}

func TestManagerClientReadyReplaysBacklog(t *testing.T) {
	gateway := newAutoGateway(t, func(gateway *autoGateway) {
		gateway.afterReady = func(conn *fakeConn, shardID int32) {
			if shardID == 0 {
				conn.dispatch("MESSAGE_CREATE", map[string]any{"content": "1"})
				conn.dispatch("MESSAGE_CREATE", map[string]any{"content": "2"})
			}
		}
	})

	manager, _, recorder := newTestManager(t, gateway.URL(), 2, nil)

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 5 }, fakeTimeout, 10*time.Millisecond)

	assert.Equal(t, []string{
		"dispatch 0 READY",
		"dispatch 1 READY",
		"client_ready",
		"dispatch 0 MESSAGE_CREATE 1",
		"dispatch 0 MESSAGE_CREATE 2",
	}, recorder.snapshot())

	assert.Equal(t, int64(2), gateway.identifies.Load())

	snapshot := manager.Snapshot()
	assert.Equal(t, int32(2), snapshot.ShardCount)
	assert.Len(t, snapshot.Shards, 2)
	assert.Empty(t, snapshot.Queued)
	assert.NotNil(t, snapshot.ReadyAt)

	// New dispatches are delivered directly.
	conn := gateway.accept()
	conn.dispatch("MESSAGE_CREATE", map[string]any{"content": "3"})

	require.Eventually(t, func() bool { return recorder.count("dispatch 0 MESSAGE_CREATE 3") == 1 }, fakeTimeout, 10*time.Millisecond)
	assert.Equal(t, 1, recorder.count("client_ready"))
}

func TestManagerWaitsForEveryShard(t *testing.T) {
	gateway := newAutoGateway(t, func(gateway *autoGateway) {
		gateway.readyGuilds = func(shardID int32) []discord.Snowflake {
			if shardID == 1 {
				return []discord.Snowflake{10}
			}

			return nil
		}
		gateway.afterReady = func(conn *fakeConn, shardID int32) {
			if shardID == 0 {
				conn.dispatch("MESSAGE_CREATE", map[string]any{"content": "1"})
				conn.dispatch("MESSAGE_CREATE", map[string]any{"content": "2"})
			}
		}
	})

	manager, _, recorder := newTestManager(t, gateway.URL(), 2, func(options *ManagerOptions, _ *fakeResolver) {
		options.WaitGuildTimeout = time.Minute
	})

	require.NoError(t, manager.Connect(context.Background()))

	gateway.accept()
	conn := gateway.accept()

	shard0, ok := manager.Shard(0)
	require.True(t, ok)

	shard1, ok := manager.Shard(1)
	require.True(t, ok)

	require.Eventually(t, func() bool { return shard0.Status() == ShardStatusReady }, fakeTimeout, 10*time.Millisecond)
	assert.Equal(t, ShardStatusWaitingForGuilds, shard1.Status())

	assert.NotEqual(t, ManagerStatusReady, manager.Status())
	assert.Zero(t, recorder.count("client_ready"))
	assert.Zero(t, recorder.count("dispatch 0 MESSAGE_CREATE 1"))

	conn.dispatch(discord.EventGuildCreate, map[string]any{"id": "10"})

	requireManagerReady(t, manager)

	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 6 }, fakeTimeout, 10*time.Millisecond)

	assert.Equal(t, []string{
		"dispatch 0 READY",
		"dispatch 1 READY",
		"dispatch 1 GUILD_CREATE",
		"client_ready",
		"dispatch 0 MESSAGE_CREATE 1",
		"dispatch 0 MESSAGE_CREATE 2",
	}, recorder.snapshot())
}

func TestManagerReidentifiesAfterNormalClose(t *testing.T) {
	gateway := newAutoGateway(t, nil)
	manager, _, recorder := newTestManager(t, gateway.URL(), 1, nil)

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	gateway.accept().closeWith(websocket.StatusNormalClosure)

	require.Eventually(t, func() bool { return gateway.identifies.Load() == 2 }, fakeTimeout, 10*time.Millisecond)
	requireManagerReady(t, manager)

	assert.Zero(t, gateway.resumes.Load())
	assert.Equal(t, 1, recorder.count("reconnecting 0"))
	assert.Equal(t, 1, recorder.count("client_ready"))

	shard, ok := manager.Shard(0)
	require.True(t, ok)
	require.Eventually(t, func() bool { return shard.Status() == ShardStatusReady }, fakeTimeout, 10*time.Millisecond)
}

func TestManagerResumesAfterReconnectClose(t *testing.T) {
	gateway := newAutoGateway(t, nil)
	manager, resolver, _ := newTestManager(t, gateway.URL(), 1, nil)

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	gateway.accept().closeWith(websocket.StatusCode(WebsocketReconnectCloseCode))

	require.Eventually(t, func() bool { return gateway.resumes.Load() == 1 }, fakeTimeout, 10*time.Millisecond)
	requireManagerReady(t, manager)

	assert.Equal(t, int64(1), gateway.identifies.Load())
	assert.Equal(t, int64(2), resolver.calls.Load())

	shard, ok := manager.Shard(0)
	require.True(t, ok)
	assert.Equal(t, "session-0", shard.SessionID())
}

func TestManagerFatalCloseCode(t *testing.T) {
	gateway := newAutoGateway(t, func(gateway *autoGateway) {
		gateway.rejectCode = websocket.StatusCode(discord.CloseAuthenticationFailed)
	})
	manager, _, recorder := newTestManager(t, gateway.URL(), 1, nil)

	err := manager.Connect(context.Background())

	var fatal *FatalCloseError

	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, int32(0), fatal.ShardID)
	assert.Equal(t, discord.CloseAuthenticationFailed, fatal.Code)

	require.Eventually(t, func() bool {
		return recorder.count(fmt.Sprintf("disconnect 0 %d", discord.CloseAuthenticationFailed)) == 1
	}, fakeTimeout, 10*time.Millisecond)

	assert.Equal(t, int64(1), gateway.identifies.Load())
	assert.Zero(t, recorder.count("reconnecting 0"))
}

func TestManagerFatalCloseWhileReconnecting(t *testing.T) {
	gateway := newAutoGateway(t, func(gateway *autoGateway) {
		gateway.rejectResumeCode = websocket.StatusCode(discord.CloseAuthenticationFailed)
	})
	manager, _, recorder := newTestManager(t, gateway.URL(), 1, nil)

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	gateway.accept().closeWith(websocket.StatusCode(WebsocketReconnectCloseCode))

	disconnect := fmt.Sprintf("disconnect 0 %d", discord.CloseAuthenticationFailed)

	require.Eventually(t, func() bool { return recorder.count(disconnect) == 1 }, fakeTimeout, 10*time.Millisecond)

	// Leave time for the reconnect loop to finish.
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 1, recorder.count(disconnect))
	assert.Equal(t, 1, recorder.count("reconnecting 0"))
	assert.Equal(t, int64(1), gateway.resumes.Load())
	assert.Equal(t, int64(1), gateway.identifies.Load())
}

func TestManagerInvalidToken(t *testing.T) {
	manager, _, _ := newTestManager(t, "ws://127.0.0.1:1", 1, func(_ *ManagerOptions, resolver *fakeResolver) {
		resolver.err = &rest.DiscordAPIError{Method: http.MethodGet, Path: "/gateway/bot", Status: http.StatusUnauthorized}
	})

	err := manager.Connect(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, rest.IsUnauthorized(err))
}

func TestManagerMissingToken(t *testing.T) {
	manager, _, _ := newTestManager(t, "ws://127.0.0.1:1", 1, func(options *ManagerOptions, _ *fakeResolver) {
		options.Token = ""
	})

	assert.ErrorIs(t, manager.Connect(context.Background()), ErrManagerMissingToken)
}

func TestManagerNodeSplitting(t *testing.T) {
	gateway := newAutoGateway(t, nil)
	manager, _, _ := newTestManager(t, gateway.URL(), 4, func(options *ManagerOptions, _ *fakeResolver) {
		options.NodeCount = 2
		options.NodeID = 1
		options.SpawnDelay = time.Millisecond
	})

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	shards := manager.Shards()
	require.Len(t, shards, 2)
	assert.Equal(t, int32(1), shards[0].ShardID)
	assert.Equal(t, int32(3), shards[1].ShardID)
}

func TestManagerRecommendedShardCount(t *testing.T) {
	gateway := newAutoGateway(t, nil)
	manager, _, _ := newTestManager(t, gateway.URL(), 0, func(options *ManagerOptions, resolver *fakeResolver) {
		resolver.gateway.Shards = 2
		options.SpawnDelay = time.Millisecond
	})

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	assert.Equal(t, int32(2), manager.ShardCount())
	assert.Len(t, manager.Shards(), 2)
}

func TestManagerDestroy(t *testing.T) {
	gateway := newAutoGateway(t, nil)
	manager, _, recorder := newTestManager(t, gateway.URL(), 1, nil)

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	conn := gateway.accept()

	manager.Destroy()
	manager.Destroy()

	assert.Equal(t, websocket.StatusNormalClosure, conn.waitClosed())
	assert.Equal(t, ManagerStatusDestroyed, manager.Status())
	assert.True(t, errors.Is(manager.Connect(context.Background()), ErrManagerDestroyed))

	shard, ok := manager.Shard(0)
	require.True(t, ok)
	assert.Empty(t, shard.SessionID())

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, recorder.count("reconnecting 0"))
}

func TestManagerBroadcast(t *testing.T) {
	gateway := newAutoGateway(t, nil)
	manager, _, _ := newTestManager(t, gateway.URL(), 2, nil)

	require.NoError(t, manager.Connect(context.Background()))
	requireManagerReady(t, manager)

	first, second := gateway.accept(), gateway.accept()

	manager.UpdatePresence(&discord.UpdateStatus{
		Status:     "dnd",
		Activities: []*discord.Activity{{Name: "shard {{shard_id}}"}},
	})

	for i, conn := range []*fakeConn{first, second} {
		var presence discord.UpdateStatus

		requireData(t, conn.expect(discord.GatewayOpStatusUpdate), &presence)

		assert.Equal(t, "dnd", presence.Status)
		assert.Equal(t, fmt.Sprintf("shard %d", i), presence.Activities[0].Name)
	}

	assert.GreaterOrEqual(t, manager.Ping(), time.Duration(-1))
}
