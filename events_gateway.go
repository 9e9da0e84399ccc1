package toast

import (
	"fmt"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/toastjson"
)

// GatewayHandler handles a packet received on connection gen.
type GatewayHandler func(shard *Shard, gen uint64, payload *discord.GatewayPayload) error

var gatewayEvents = make(map[discord.GatewayOp]GatewayHandler)

func RegisterGatewayEvent(op discord.GatewayOp, handler GatewayHandler) {
	gatewayEvents[op] = handler
}

func gatewayOpDispatch(shard *Shard, gen uint64, payload *discord.GatewayPayload) error {
	if !shard.live(gen) {
		return nil
	}

	RecordEvent(shard.options.Identifier, payload.Type)

	shard.listener.ShardDispatch(shard, payload)

	return shard.OnDispatch(gen, payload)
}

func gatewayOpHeartbeat(shard *Shard, gen uint64, _ *discord.GatewayPayload) error {
	shard.sendHeartbeat(gen, "HeartbeatRequest", true)

	return nil
}

func gatewayOpReconnect(shard *Shard, gen uint64, _ *discord.GatewayPayload) error {
	shard.Logger.Debug().Msg("Shard has been requested to reconnect")

	shard.destroyIf(gen, DestroyOptions{Code: WebsocketReconnectCloseCode, Emit: true})

	return nil
}

func gatewayOpInvalidSession(shard *Shard, gen uint64, payload *discord.GatewayPayload) error {
	var resumable bool

	if err := toastjson.Unmarshal(payload.Data, &resumable); err != nil {
		return fmt.Errorf("failed to unmarshal invalid session: %w", err)
	}

	shard.Logger.Warn().Bool("resumable", resumable).Msg("Shard has received an invalid session")

	if resumable {
		shard.identifyResume(gen)

		return nil
	}

	shard.mu.Lock()

	if !shard.liveLocked(gen) {
		shard.mu.Unlock()

		return nil
	}

	shard.sequence = -1
	shard.sessionID = ""
	shard.resumeGatewayURL = ""
	shard.setStatusLocked(ShardStatusReconnecting)

	waiters := shard.takeWaitersLocked()

	shard.mu.Unlock()

	resolveWaiters(waiters, ErrShardInvalidSession)

	shard.listener.ShardInvalidSession(shard)

	shard.destroyIf(gen, DestroyOptions{Code: WebsocketReconnectCloseCode, Reset: true, Emit: true})

	return nil
}

func gatewayOpHello(shard *Shard, gen uint64, payload *discord.GatewayPayload) error {
	var hello discord.Hello

	if err := toastjson.Unmarshal(payload.Data, &hello); err != nil {
		return fmt.Errorf("failed to unmarshal hello: %w", err)
	}

	if hello.HeartbeatInterval <= 0 {
		return ErrShardInvalidHeartbeatInterval
	}

	heartbeatInterval := time.Duration(hello.HeartbeatInterval) * time.Millisecond

	shard.mu.Lock()

	if !shard.liveLocked(gen) {
		shard.mu.Unlock()

		return nil
	}

	if shard.helloTimer != nil {
		shard.helloTimer.Stop()
		shard.helloTimer = nil
	}

	shard.lastHeartbeatAcked = true
	shard.startHeartbeatLocked(gen, heartbeatInterval)

	shard.mu.Unlock()

	shard.identify(gen)

	return nil
}

func gatewayOpHeartbeatAck(shard *Shard, gen uint64, _ *discord.GatewayPayload) error {
	shard.ackHeartbeat(gen)

	return nil
}

func init() {
	RegisterGatewayEvent(discord.GatewayOpDispatch, gatewayOpDispatch)
	RegisterGatewayEvent(discord.GatewayOpHeartbeat, gatewayOpHeartbeat)
	RegisterGatewayEvent(discord.GatewayOpReconnect, gatewayOpReconnect)
	RegisterGatewayEvent(discord.GatewayOpInvalidSession, gatewayOpInvalidSession)
	RegisterGatewayEvent(discord.GatewayOpHello, gatewayOpHello)
	RegisterGatewayEvent(discord.GatewayOpHeartbeatACK, gatewayOpHeartbeatAck)
}
