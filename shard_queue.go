package toast

import (
	"context"
	"fmt"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	gotils_strconv "github.com/savsgio/gotils/strconv"
	"nhooyr.io/websocket"
)

// Send queues a payload on the current connection. Important payloads jump
// the queue.
func (s *Shard) Send(op discord.GatewayOp, data any, important bool) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	return s.enqueue(gen, op, data, important)
}

// UpdatePresence sends a presence update through the send queue.
func (s *Shard) UpdatePresence(presence *discord.UpdateStatus) error {
	return s.Send(discord.GatewayOpStatusUpdate, shardPresence(presence, s.ShardID), false)
}

func (s *Shard) enqueue(gen uint64, op discord.GatewayOp, data any, important bool) error {
	frame, err := EncodeFrame(op, data)
	if err != nil {
		return err
	}

	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return ErrShardNotConnected
	}

	item := queuedFrame{op: op, frame: frame}

	if important {
		s.queue = append([]queuedFrame{item}, s.queue...)
	} else {
		s.queue = append(s.queue, item)
	}

	s.mu.Unlock()

	s.processQueue(gen)

	return nil
}

// processQueue drains the queue until it is empty or the send bucket is
// exhausted, in which case a refill timer resumes it. Only one drain runs
// per connection so frames keep their queue order.
func (s *Shard) processQueue(gen uint64) {
	s.mu.Lock()

	if s.draining && s.drainingGen == gen {
		s.mu.Unlock()

		return
	}

	s.draining = true
	s.drainingGen = gen

	s.mu.Unlock()

	for {
		s.mu.Lock()

		if !s.liveLocked(gen) || len(s.queue) == 0 {
			s.stopDrainLocked(gen)
			s.mu.Unlock()

			return
		}

		ok, wait := s.ratelimit.Take()
		if !ok {
			if s.refillTimer == nil {
				s.Logger.Debug().Dur("wait", wait).Int("queued", len(s.queue)).Msg("Send bucket exhausted")

				s.refillTimer = time.AfterFunc(wait, func() { s.onRefill(gen) })
			}

			s.stopDrainLocked(gen)
			s.mu.Unlock()

			return
		}

		item := s.queue[0]
		s.queue = s.queue[1:]

		conn, ctx := s.conn, s.connCtx

		s.mu.Unlock()

		if err := s.write(ctx, conn, item); err != nil {
			s.Logger.Warn().Err(err).Str("op", item.op.String()).Msg("Failed to send payload")

			s.mu.Lock()
			s.stopDrainLocked(gen)
			s.mu.Unlock()

			s.destroyIf(gen, DestroyOptions{Code: WebsocketReconnectCloseCode, Emit: true})

			return
		}
	}
}

func (s *Shard) stopDrainLocked(gen uint64) {
	if s.drainingGen == gen {
		s.draining = false
	}
}

func (s *Shard) onRefill(gen uint64) {
	s.mu.Lock()

	if gen != s.gen {
		s.mu.Unlock()

		return
	}

	s.refillTimer = nil

	s.mu.Unlock()

	s.processQueue(gen)
}

func (s *Shard) write(ctx context.Context, conn *websocket.Conn, item queuedFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()

	s.Logger.Trace().Str("payload", gotils_strconv.B2S(item.frame)).Msg("Sending payload")

	if err := conn.Write(writeCtx, websocket.MessageText, item.frame); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	return nil
}
