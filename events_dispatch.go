package toast

import (
	"fmt"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/toastjson"
)

// OnDispatch runs the shard's own handling of a dispatch. Every dispatch
// has already been passed to the listener.
func (s *Shard) OnDispatch(gen uint64, payload *discord.GatewayPayload) error {
	switch payload.Type {
	case discord.EventReady:
		return s.onReady(gen, payload)
	case discord.EventResumed:
		return s.onResumed(gen, payload)
	case discord.EventGuildCreate:
		return s.onGuildCreate(gen, payload)
	default:
		return nil
	}
}

// onReady stores the session and waits for the guilds listed in READY.
func (s *Shard) onReady(gen uint64, payload *discord.GatewayPayload) error {
	var ready discord.Ready

	if err := toastjson.Unmarshal(payload.Data, &ready); err != nil {
		return fmt.Errorf("failed to unmarshal ready payload: %w", err)
	}

	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return nil
	}

	s.sessionID = ready.SessionID
	s.resumeGatewayURL = ready.ResumeGatewayURL

	s.expectedGuilds = make(map[discord.Snowflake]struct{}, len(ready.Guilds))
	for _, guild := range ready.Guilds {
		s.expectedGuilds[guild.ID] = struct{}{}
	}

	s.setStatusLocked(ShardStatusWaitingForGuilds)
	s.lastHeartbeatAcked = true

	waiters := s.takeWaitersLocked()

	s.mu.Unlock()

	s.Logger.Info().
		Str("session_id", ready.SessionID).
		Int("guilds", len(ready.Guilds)).
		Msg("Shard received READY")

	resolveWaiters(waiters, nil)

	s.sendHeartbeat(gen, "ReadyHeartbeat", false)
	s.checkReady(gen)

	return nil
}

func (s *Shard) onResumed(gen uint64, payload *discord.GatewayPayload) error {
	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return nil
	}

	sequence := s.sequence
	if payload.Sequence != nil {
		sequence = *payload.Sequence
	}

	replayed := sequence - s.closeSequence

	s.setStatusLocked(ShardStatusReady)
	s.lastHeartbeatAcked = true

	waiters := s.takeWaitersLocked()
	sessionID := s.sessionID

	s.mu.Unlock()

	s.Logger.Info().Str("session_id", sessionID).Int64("replayed", replayed).Msg("Shard resumed")

	resolveWaiters(waiters, nil)

	s.sendHeartbeat(gen, "ResumeHeartbeat", false)

	s.listener.ShardResumed(s, replayed)

	return nil
}

func (s *Shard) onGuildCreate(gen uint64, payload *discord.GatewayPayload) error {
	if s.Status() != ShardStatusWaitingForGuilds {
		return nil
	}

	var guild struct {
		ID discord.Snowflake `json:"id"`
	}

	if err := toastjson.Unmarshal(payload.Data, &guild); err != nil {
		return fmt.Errorf("failed to unmarshal guild create: %w", err)
	}

	s.mu.Lock()
	delete(s.expectedGuilds, guild.ID)
	s.mu.Unlock()

	s.checkReady(gen)

	return nil
}
