package toast

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/pkg/limiter"
	"github.com/rs/zerolog"
	gotils_strconv "github.com/savsgio/gotils/strconv"
	"go.uber.org/atomic"
	"nhooyr.io/websocket"
)

var (
	// Time to wait for HELLO after the socket opened.
	HelloTimeout = 20 * time.Second

	// Time to wait for a locally initiated close to be observed.
	CloseTimeout = 5 * time.Second

	HandshakeTimeout = 30 * time.Second
	WriteTimeout     = 10 * time.Second

	GatewayLargeThreshold = int32(100)

	// Discord allows 120 sends per minute on a single connection.
	ShardSendLimit  = int32(120)
	ShardSendWindow = time.Minute
)

const (
	WebsocketReadLimit = 512 << 20

	WebsocketReconnectCloseCode = 4000
	WebsocketZombieCloseCode    = 4009
)

// ShardListener receives the lifecycle of a shard. Methods are called
// without any shard lock held, from the shard's goroutines.
type ShardListener interface {
	ShardDispatch(shard *Shard, payload *discord.GatewayPayload)
	ShardReady(shard *Shard, unavailableGuilds []discord.Snowflake)
	ShardResumed(shard *Shard, replayed int64)
	ShardInvalidSession(shard *Shard)
	ShardClosed(shard *Shard, code int)
	ShardDestroyed(shard *Shard)
}

type ShardOptions struct {
	Logger zerolog.Logger

	// Identifier labels metrics.
	Identifier string

	ShardCount int32

	Identify         IdentifyOptions
	IdentifyProvider IdentifyProvider

	// Time to wait for GUILD_CREATE of every guild listed in READY.
	WaitGuildTimeout time.Duration

	HelloTimeout     time.Duration
	CloseTimeout     time.Duration
	HandshakeTimeout time.Duration

	Listener ShardListener
}

// DestroyOptions controls how a shard connection is torn down.
type DestroyOptions struct {
	Code int

	// Reset clears the session so the next connect identifies.
	Reset bool

	// Emit reports the close to the listener. Without it the connection is
	// dropped silently.
	Emit bool
}

type queuedFrame struct {
	op    discord.GatewayOp
	frame []byte
}

// Shard owns one gateway connection and its protocol state.
//
// Every connection gets a generation. Timers and goroutines of a connection
// carry the generation they were started with and do nothing once it is
// no longer current.
type Shard struct {
	Logger zerolog.Logger

	ShardID int32

	options  ShardOptions
	listener ShardListener

	mu sync.Mutex

	gen    uint64
	status ShardStatus

	conn        *websocket.Conn
	closingConn *websocket.Conn
	connCtx     context.Context
	connCancel  context.CancelFunc

	gatewayURL     string
	maxConcurrency int32

	sequence         int64
	closeSequence    int64
	sessionID        string
	resumeGatewayURL string

	lastHeartbeatAcked bool
	lastPingTimestamp  time.Time

	expectedGuilds map[discord.Snowflake]struct{}

	pendingCloseCode int

	helloTimer    *time.Timer
	readyTimer    *time.Timer
	closeTimer    *time.Timer
	refillTimer   *time.Timer
	heartbeatStop chan struct{}

	queue       []queuedFrame
	draining    bool
	drainingGen uint64
	ratelimit   *limiter.TokenBucket

	waiters []chan error

	writeMu sync.Mutex

	ping        *atomic.Int64
	connectedAt *atomic.Time
}

func NewShard(shardID int32, options ShardOptions) *Shard {
	if options.Listener == nil {
		options.Listener = nopShardListener{}
	}

	if options.HelloTimeout <= 0 {
		options.HelloTimeout = HelloTimeout
	}

	if options.CloseTimeout <= 0 {
		options.CloseTimeout = CloseTimeout
	}

	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = HandshakeTimeout
	}

	if options.ShardCount < 1 {
		options.ShardCount = 1
	}

	return &Shard{
		Logger:  options.Logger.With().Int32("shard_id", shardID).Logger(),
		ShardID: shardID,

		options:  options,
		listener: options.Listener,

		status: ShardStatusIdle,

		maxConcurrency: 1,

		sequence:      -1,
		closeSequence: 0,

		expectedGuilds: make(map[discord.Snowflake]struct{}),

		ratelimit: limiter.NewTokenBucket(ShardSendLimit, ShardSendWindow),

		ping:        atomic.NewInt64(-1),
		connectedAt: atomic.NewTime(time.Time{}),
	}
}

// SetGateway sets the gateway new sessions connect to.
func (s *Shard) SetGateway(gatewayURL string, maxConcurrency int32) {
	s.mu.Lock()
	s.gatewayURL = gatewayURL
	s.maxConcurrency = maxConcurrency
	s.mu.Unlock()
}

func (s *Shard) Status() ShardStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

func (s *Shard) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessionID
}

func (s *Shard) Sequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sequence
}

func (s *Shard) CloseSequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeSequence
}

// ClearSession forgets the session so the next connect identifies.
func (s *Shard) ClearSession() {
	s.mu.Lock()
	s.sessionID = ""
	s.resumeGatewayURL = ""
	s.mu.Unlock()
}

// Ping returns the last heartbeat round trip, or -1 if none was acked yet.
func (s *Shard) Ping() time.Duration {
	ping := s.ping.Load()
	if ping < 0 {
		return -1
	}

	return time.Duration(ping) * time.Millisecond
}

// ShardSnapshot is the shard as shown in the status api.
type ShardSnapshot struct {
	ShardID     int32       `json:"shard_id"`
	Status      ShardStatus `json:"status"`
	Ping        int64       `json:"ping_ms"`
	Sequence    int64       `json:"sequence"`
	Resumable   bool        `json:"resumable"`
	ConnectedAt *time.Time  `json:"connected_at,omitempty"`
}

func (s *Shard) Snapshot() ShardSnapshot {
	s.mu.Lock()
	snapshot := ShardSnapshot{
		ShardID:   s.ShardID,
		Status:    s.status,
		Ping:      s.ping.Load(),
		Sequence:  s.sequence,
		Resumable: s.sessionID != "",
	}
	s.mu.Unlock()

	if connectedAt := s.connectedAt.Load(); !connectedAt.IsZero() {
		snapshot.ConnectedAt = &connectedAt
	}

	return snapshot
}

// Connect opens a connection and returns once the shard received READY or
// RESUMED. It returns immediately if the shard is already ready.
func (s *Shard) Connect(ctx context.Context) error {
	s.mu.Lock()

	if s.conn != nil && s.status == ShardStatusReady {
		s.mu.Unlock()

		return nil
	}

	cleanup := func() {}

	if s.conn != nil || s.closingConn != nil {
		s.Logger.Debug().Str("status", s.status.String()).Msg("A connection was found, cleaning up before continuing")

		cleanup = s.destroyLocked(DestroyOptions{Code: discord.CloseNormalClosure})
	}

	if s.status == ShardStatusDisconnected {
		s.setStatusLocked(ShardStatusReconnecting)
	} else {
		s.setStatusLocked(ShardStatusConnecting)
	}

	s.stopTimersLocked()

	s.gen++
	gen := s.gen

	waiter := make(chan error, 1)
	s.waiters = append(s.waiters, waiter)

	gatewayURL := s.gatewayURL
	if s.sessionID != "" && s.resumeGatewayURL != "" {
		gatewayURL = s.resumeGatewayURL
	}

	s.mu.Unlock()

	cleanup()

	connectURL, err := gatewayConnectURL(gatewayURL)
	if err != nil {
		s.abandonConnect(gen, waiter)

		return fmt.Errorf("%w: %w", ErrShardConnectFailed, err)
	}

	s.Logger.Debug().Str("url", connectURL).Msg("Dialing websocket")

	dialCtx, cancel := context.WithTimeout(ctx, s.options.HandshakeTimeout)
	conn, _, err := websocket.Dial(dialCtx, connectURL, nil)

	cancel()

	if err != nil {
		s.abandonConnect(gen, waiter)

		return fmt.Errorf("%w: %w", ErrShardConnectFailed, err)
	}

	conn.SetReadLimit(WebsocketReadLimit)

	s.mu.Lock()

	if gen != s.gen {
		s.mu.Unlock()

		_ = conn.CloseNow()

		return ErrShardDestroyed
	}

	s.conn = conn
	s.connCtx, s.connCancel = context.WithCancel(context.Background())
	s.lastHeartbeatAcked = true
	s.pendingCloseCode = 0
	s.setStatusLocked(ShardStatusNearly)
	s.helloTimer = time.AfterFunc(s.options.HelloTimeout, func() { s.onHelloTimeout(gen) })

	s.mu.Unlock()

	s.connectedAt.Store(time.Now())

	s.Logger.Debug().Msg("Connected to gateway")

	go s.readLoop(gen, conn)

	select {
	case err := <-waiter:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		s.removeWaiterLocked(waiter)
		s.mu.Unlock()

		return ctx.Err()
	}
}

func (s *Shard) abandonConnect(gen uint64, waiter chan error) {
	s.mu.Lock()
	s.removeWaiterLocked(waiter)

	if gen == s.gen {
		s.setStatusLocked(ShardStatusDisconnected)
	}
	s.mu.Unlock()
}

func gatewayConnectURL(gatewayURL string) (string, error) {
	if gatewayURL == "" {
		return "", errors.New("no gateway url")
	}

	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse gateway url: %w", err)
	}

	query := u.Query()
	query.Set("v", strconv.Itoa(discord.GatewayVersion))
	query.Set("encoding", "json")
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// Destroy tears down the current connection.
func (s *Shard) Destroy(options DestroyOptions) {
	s.mu.Lock()
	after := s.destroyLocked(options)
	s.mu.Unlock()

	after()
}

// destroyIf destroys the connection only if gen is still current.
func (s *Shard) destroyIf(gen uint64, options DestroyOptions) {
	s.mu.Lock()

	if gen != s.gen {
		s.mu.Unlock()

		return
	}

	after := s.destroyLocked(options)
	s.mu.Unlock()

	after()
}

// destroyLocked returns work that must run once the lock is released.
func (s *Shard) destroyLocked(options DestroyOptions) func() {
	if options.Code == 0 {
		options.Code = discord.CloseNormalClosure
	}

	s.Logger.Debug().
		Int("code", options.Code).
		Bool("reset", options.Reset).
		Bool("emit", options.Emit).
		Msg("Destroying shard")

	s.stopTimersLocked()

	conn := s.conn
	s.conn = nil

	if s.sequence != -1 {
		s.closeSequence = s.sequence
	}

	if options.Reset {
		s.sequence = -1
		s.sessionID = ""
		s.resumeGatewayURL = ""
	}

	s.setStatusLocked(ShardStatusDisconnected)

	var (
		stale         *websocket.Conn
		waiters       []chan error
		emitDestroyed bool
	)

	if conn != nil && options.Emit {
		// The reader reports the close. If it never does, the watchdog will.
		gen := s.gen
		s.closingConn = conn
		s.pendingCloseCode = options.Code
		s.closeTimer = time.AfterFunc(s.options.CloseTimeout, func() { s.onCloseTimeout(gen) })
	} else {
		s.gen++
		stale = s.closingConn
		s.closingConn = nil
		waiters = s.takeWaitersLocked()
		emitDestroyed = conn == nil && options.Emit
	}

	return func() {
		if conn != nil {
			go s.closeConn(conn, options.Code)
		}

		if stale != nil {
			_ = stale.CloseNow()
		}

		resolveWaiters(waiters, ErrShardDestroyed)

		if emitDestroyed {
			s.listener.ShardDestroyed(s)
		}
	}
}

func (s *Shard) closeConn(conn *websocket.Conn, code int) {
	err := conn.Close(websocket.StatusCode(code), "")
	if err != nil {
		s.Logger.Debug().Err(err).Msg("Failed to close websocket, terminating")

		_ = conn.CloseNow()
	}
}

// onClose handles the end of connection gen. code is -1 when no close
// frame was received.
func (s *Shard) onClose(gen uint64, code int) {
	s.mu.Lock()

	if gen != s.gen {
		s.mu.Unlock()

		return
	}

	if code < 0 {
		code = discord.CloseAbnormal

		if s.pendingCloseCode != 0 {
			code = s.pendingCloseCode
		}
	}

	s.gen++

	if s.sequence != -1 {
		s.closeSequence = s.sequence
	}

	s.sequence = -1

	s.stopTimersLocked()

	conn := s.conn
	if conn == nil {
		conn = s.closingConn
	}

	s.conn = nil
	s.closingConn = nil
	s.pendingCloseCode = 0

	s.setStatusLocked(ShardStatusDisconnected)

	waiters := s.takeWaitersLocked()
	closeSequence := s.closeSequence

	s.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	s.Logger.Info().
		Int("code", code).
		Str("reason", closeCodeReason(code)).
		Int64("close_sequence", closeSequence).
		Msg("Shard closed")

	resolveWaiters(waiters, &CloseError{Code: code})

	s.listener.ShardClosed(s, code)
}

func (s *Shard) onCloseTimeout(gen uint64) {
	s.mu.Lock()
	pending := gen == s.gen && s.closingConn != nil
	s.mu.Unlock()

	if !pending {
		return
	}

	s.Logger.Warn().Msg("Websocket did not close properly, assuming a zombie connection")

	s.onClose(gen, discord.CloseInternalError)
}

func (s *Shard) onHelloTimeout(gen uint64) {
	s.Logger.Warn().Msg("Did not receive HELLO in time, destroying and connecting again")

	s.destroyIf(gen, DestroyOptions{Code: WebsocketZombieCloseCode, Reset: true, Emit: true})
}

func (s *Shard) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		messageType, data, err := conn.Read(context.Background())
		if err != nil {
			code := int(websocket.CloseStatus(err))

			if code < 0 {
				s.Logger.Debug().Err(err).Msg("Websocket read failed")
			}

			s.onClose(gen, code)

			return
		}

		payload, err := DecodeFrame(messageType, data)
		if err != nil {
			RecordMalformedFrame(s.options.Identifier)

			s.Logger.Warn().Err(err).Msg("Dropped frame")

			continue
		}

		if messageType == websocket.MessageText {
			s.Logger.Trace().Str("payload", gotils_strconv.B2S(data)).Msg("Received frame")
		}

		if err := s.OnEvent(gen, payload); err != nil {
			if errors.Is(err, ErrNoGatewayHandler) {
				s.Logger.Debug().Err(err).Msg("Unhandled packet")
			} else {
				s.Logger.Error().Err(err).Str("op", payload.Op.String()).Msg("Failed to handle packet")
			}
		}
	}
}

// OnEvent tracks the sequence and routes the packet by opcode.
func (s *Shard) OnEvent(gen uint64, payload *discord.GatewayPayload) error {
	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return nil
	}

	if payload.Sequence != nil && *payload.Sequence > s.sequence {
		s.sequence = *payload.Sequence
	}

	s.mu.Unlock()

	handler, ok := gatewayEvents[payload.Op]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoGatewayHandler, payload.Op)
	}

	return handler(s, gen, payload)
}

func (s *Shard) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liveLocked(gen)
}

func (s *Shard) liveLocked(gen uint64) bool {
	return gen == s.gen && s.conn != nil
}

func (s *Shard) startHeartbeatLocked(gen uint64, interval time.Duration) {
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
	}

	s.heartbeatStop = make(chan struct{})

	go s.heartbeat(gen, interval, s.heartbeatStop)
}

func (s *Shard) heartbeat(gen uint64, interval time.Duration, stop <-chan struct{}) {
	// Jitter the first beat so shards started together do not beat together.
	jitter := time.Duration(rand.Int64N(int64(interval) + 1))

	s.Logger.Debug().
		Dur("heartbeat_interval", interval).
		Dur("heartbeat_jitter", jitter).
		Msg("Shard is heartbeating")

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			s.sendHeartbeat(gen, "HeartbeatTimer", false)

			timer.Reset(interval)
		}
	}
}

// sendHeartbeat destroys the connection if the previous heartbeat was never
// acked. The ack is not required while the session is starting, or when
// force is set.
func (s *Shard) sendHeartbeat(gen uint64, tag string, force bool) {
	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return
	}

	lenient := force ||
		s.status == ShardStatusWaitingForGuilds ||
		s.status == ShardStatusIdentifying ||
		s.status == ShardStatusResuming

	if !s.lastHeartbeatAcked {
		if !lenient {
			s.Logger.Warn().
				Str("tag", tag).
				Str("status", s.status.String()).
				Int64("sequence", s.sequence).
				Msg("Did not receive a heartbeat ack last time, assuming zombie connection")

			after := s.destroyLocked(DestroyOptions{Code: WebsocketZombieCloseCode, Reset: true, Emit: true})
			s.mu.Unlock()

			after()

			return
		}

		s.Logger.Debug().Str("tag", tag).Msg("Heartbeat ack not processed yet, sending one anyway")
	}

	s.lastHeartbeatAcked = false
	s.lastPingTimestamp = time.Now()
	sequence := s.sequence

	s.mu.Unlock()

	s.Logger.Debug().Str("tag", tag).Int64("sequence", sequence).Msg("Sending heartbeat")

	_ = s.enqueue(gen, discord.GatewayOpHeartbeat, heartbeatSequence(sequence), true)
}

// heartbeatSequence sends null before the first dispatch.
func heartbeatSequence(sequence int64) any {
	if sequence < 0 {
		return nil
	}

	return sequence
}

func (s *Shard) ackHeartbeat(gen uint64) {
	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return
	}

	s.lastHeartbeatAcked = true
	latency := time.Since(s.lastPingTimestamp)

	s.mu.Unlock()

	s.ping.Store(latency.Milliseconds())

	UpdateGatewayLatency(s.options.Identifier, s.ShardID, float64(latency.Milliseconds()))

	s.Logger.Debug().Dur("latency", latency).Msg("Heartbeat acknowledged")
}

func (s *Shard) identify(gen uint64) {
	if s.SessionID() != "" {
		s.identifyResume(gen)
	} else {
		s.identifyNew(gen)
	}
}

func (s *Shard) identifyNew(gen uint64) {
	if s.options.Identify.Token == "" {
		s.Logger.Warn().Msg("No token available to identify a new session")

		return
	}

	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return
	}

	// A new session numbers its events from scratch.
	s.sequence = -1
	s.setStatusLocked(ShardStatusIdentifying)

	ctx := s.connCtx
	request := IdentifyRequest{
		Token:          s.options.Identify.Token,
		ShardID:        s.ShardID,
		ShardCount:     s.options.ShardCount,
		MaxConcurrency: s.maxConcurrency,
	}

	s.mu.Unlock()

	go func() {
		if provider := s.options.IdentifyProvider; provider != nil {
			if err := provider.Identify(ctx, request); err != nil {
				if ctx.Err() == nil {
					s.Logger.Error().Err(err).Msg("Failed to wait for identify")
				}

				return
			}
		}

		s.Logger.Debug().
			Int32("shard_count", request.ShardCount).
			Uint32("intents", uint32(s.options.Identify.Intents)).
			Msg("Shard is identifying")

		_ = s.enqueue(gen, discord.GatewayOpIdentify, buildIdentify(s.options.Identify, s.ShardID, s.options.ShardCount), true)
	}()
}

func (s *Shard) identifyResume(gen uint64) {
	s.mu.Lock()

	if !s.liveLocked(gen) {
		s.mu.Unlock()

		return
	}

	if s.sessionID == "" {
		s.mu.Unlock()

		s.Logger.Debug().Msg("No session id was present, identifying as a new session")
		s.identifyNew(gen)

		return
	}

	s.setStatusLocked(ShardStatusResuming)

	resume := discord.Resume{
		Token:     s.options.Identify.Token,
		SessionID: s.sessionID,
		Sequence:  s.closeSequence,
	}

	s.mu.Unlock()

	s.Logger.Debug().Str("session_id", resume.SessionID).Int64("sequence", resume.Sequence).Msg("Shard is resuming")

	_ = s.enqueue(gen, discord.GatewayOpResume, resume, true)
}

// checkReady marks the shard ready once every guild from READY arrived, or
// when the wait for them runs out.
func (s *Shard) checkReady(gen uint64) {
	s.mu.Lock()

	if !s.liveLocked(gen) || s.status != ShardStatusWaitingForGuilds {
		s.mu.Unlock()

		return
	}

	if s.readyTimer != nil {
		s.readyTimer.Stop()
		s.readyTimer = nil
	}

	if len(s.expectedGuilds) == 0 {
		s.setStatusLocked(ShardStatusReady)
		s.mu.Unlock()

		s.Logger.Info().Msg("Shard received all its guilds, marking as fully ready")

		s.listener.ShardReady(s, nil)

		return
	}

	var timeout time.Duration
	if s.options.Identify.Intents.Has(discord.IntentGuilds) {
		timeout = s.options.WaitGuildTimeout
	}

	s.readyTimer = time.AfterFunc(timeout, func() { s.onReadyTimeout(gen) })

	s.mu.Unlock()
}

func (s *Shard) onReadyTimeout(gen uint64) {
	s.mu.Lock()

	if !s.liveLocked(gen) || s.status != ShardStatusWaitingForGuilds {
		s.mu.Unlock()

		return
	}

	unavailable := make([]discord.Snowflake, 0, len(s.expectedGuilds))
	for guildID := range s.expectedGuilds {
		unavailable = append(unavailable, guildID)
	}

	sort.Slice(unavailable, func(i, j int) bool { return unavailable[i] < unavailable[j] })

	s.readyTimer = nil
	s.setStatusLocked(ShardStatusReady)

	s.mu.Unlock()

	s.Logger.Info().Int("unavailable_guilds", len(unavailable)).Msg("Shard will not receive any more guilds, marking as ready")

	s.listener.ShardReady(s, unavailable)
}

func (s *Shard) setStatusLocked(status ShardStatus) {
	if s.status == status {
		return
	}

	s.status = status

	UpdateShardStatus(s.options.Identifier, s.ShardID, status)

	s.Logger.Debug().Str("status", status.String()).Msg("Shard status updated")
}

func (s *Shard) stopTimersLocked() {
	for _, timer := range []**time.Timer{&s.helloTimer, &s.readyTimer, &s.closeTimer, &s.refillTimer} {
		if *timer != nil {
			(*timer).Stop()
			*timer = nil
		}
	}

	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}

	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}

	s.queue = nil
	s.ratelimit.Reset()
}

func (s *Shard) takeWaitersLocked() []chan error {
	waiters := s.waiters
	s.waiters = nil

	return waiters
}

func (s *Shard) removeWaiterLocked(waiter chan error) {
	for i, w := range s.waiters {
		if w == waiter {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)

			return
		}
	}
}

func resolveWaiters(waiters []chan error, err error) {
	for _, waiter := range waiters {
		select {
		case waiter <- err:
		default:
		}
	}
}

type nopShardListener struct{}

func (nopShardListener) ShardDispatch(*Shard, *discord.GatewayPayload) {}
func (nopShardListener) ShardReady(*Shard, []discord.Snowflake)        {}
func (nopShardListener) ShardResumed(*Shard, int64)                    {}
func (nopShardListener) ShardInvalidSession(*Shard)                    {}
func (nopShardListener) ShardClosed(*Shard, int)                       {}
func (nopShardListener) ShardDestroyed(*Shard)                         {}
