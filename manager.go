package toast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/WelcomerTeam/RealRock/limiter"
	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/rest"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var (
	// Delay between shard spawns while shards are waiting in the queue.
	SpawnDelay = 5 * time.Second

	// Delay before retrying a fleet reconnect that failed.
	ReconnectBackoff = 5 * time.Second

	DefaultWaitGuildTimeout = 15 * time.Second
)

// Dispatches delivered before every shard is ready.
var beforeReadyWhitelist = map[string]bool{
	discord.EventReady:             true,
	discord.EventResumed:           true,
	discord.EventGuildCreate:       true,
	discord.EventGuildDelete:       true,
	discord.EventGuildMembersChunk: true,
	discord.EventGuildMemberAdd:    true,
	discord.EventGuildMemberRemove: true,
}

// GatewayResolver returns the gateway to connect to. rest.Client implements it.
type GatewayResolver interface {
	GetGatewayBot(ctx context.Context) (*discord.GatewayBotResponse, error)
}

type ManagerOptions struct {
	Logger zerolog.Logger

	// Identifier labels metrics.
	Identifier string

	Token string

	// ShardCount is the total shard count. <= 0 uses the recommended count.
	ShardCount int32

	// ShardIDs is a range list such as "0-3,6". Empty spawns every shard.
	ShardIDs string

	// Splits the shard ids between processes: a node runs the shards where
	// shard_id % NodeCount == NodeID.
	NodeCount int32
	NodeID    int32

	// Overrides the url returned by the resolver.
	GatewayURL string

	Identify         IdentifyOptions
	IdentifyProvider IdentifyProvider

	WaitGuildTimeout time.Duration
	HelloTimeout     time.Duration
	CloseTimeout     time.Duration

	SpawnDelay       time.Duration
	ReconnectBackoff time.Duration
}

type backlogItem struct {
	payload *discord.GatewayPayload
	shard   *Shard
}

// Manager spawns and supervises the shards of one bot.
type Manager struct {
	Logger zerolog.Logger
	Events *EventBus

	options  ManagerOptions
	resolver GatewayResolver

	gatewayLimiter *limiter.DurationLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex

	status      ManagerStatus
	destroyed   bool
	spawning    bool
	clientReady bool
	readyAt     time.Time

	gateway    *discord.GatewayBotResponse
	gatewayURL string

	shardCount  int32
	totalShards int

	shards     map[int32]*Shard
	shardQueue []*Shard

	dispatchMu    sync.Mutex
	dispatchReady *atomic.Bool
	backlog       []backlogItem
}

func NewManager(options ManagerOptions, resolver GatewayResolver, events *EventBus) *Manager {
	if events == nil {
		events = NewEventBus()
	}

	if options.Identifier == "" {
		options.Identifier = "toast"
	}

	if options.SpawnDelay <= 0 {
		options.SpawnDelay = SpawnDelay
	}

	if options.ReconnectBackoff <= 0 {
		options.ReconnectBackoff = ReconnectBackoff
	}

	if options.WaitGuildTimeout <= 0 {
		options.WaitGuildTimeout = DefaultWaitGuildTimeout
	}

	options.Identify.Token = options.Token

	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		Logger: options.Logger.With().Str("identifier", options.Identifier).Logger(),
		Events: events,

		options:  options,
		resolver: resolver,

		gatewayLimiter: limiter.NewDurationLimiter(1, time.Second),

		ctx:    ctx,
		cancel: cancel,

		status: ManagerStatusIdle,

		shards: make(map[int32]*Shard),

		dispatchReady: atomic.NewBool(false),
	}

	UpdateManagerStatus(options.Identifier, ManagerStatusIdle)

	return manager
}

// Connect resolves the gateway and spawns every shard. It returns once each
// shard connected or was requeued.
func (m *Manager) Connect(ctx context.Context) error {
	if m.options.Token == "" {
		return ErrManagerMissingToken
	}

	m.mu.Lock()

	if m.destroyed {
		m.mu.Unlock()

		return ErrManagerDestroyed
	}

	if m.status != ManagerStatusIdle {
		m.mu.Unlock()

		return nil
	}

	m.setStatusLocked(ManagerStatusConnecting)
	m.spawning = true

	m.mu.Unlock()

	err := m.connect(ctx)

	m.finishSpawning()

	return err
}

func (m *Manager) connect(ctx context.Context) error {
	gateway, err := m.resolveGateway(ctx)
	if err != nil {
		if rest.IsUnauthorized(err) {
			return fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}

		return err
	}

	shardCount := m.options.ShardCount
	if shardCount <= 0 {
		shardCount = gateway.Shards

		m.debug(-1, fmt.Sprintf("Using the recommended shard count provided by Discord: %d", shardCount))
	}

	if shardCount < 1 {
		shardCount = 1
	}

	shardIDs := m.shardIDs(shardCount)
	if len(shardIDs) == 0 {
		return ErrManagerMissingShards
	}

	m.mu.Lock()

	m.shardCount = shardCount
	m.totalShards = len(shardIDs)

	for _, shardID := range shardIDs {
		shard := NewShard(shardID, ShardOptions{
			Logger:           m.Logger,
			Identifier:       m.options.Identifier,
			ShardCount:       shardCount,
			Identify:         m.options.Identify,
			IdentifyProvider: m.options.IdentifyProvider,
			WaitGuildTimeout: m.options.WaitGuildTimeout,
			HelloTimeout:     m.options.HelloTimeout,
			CloseTimeout:     m.options.CloseTimeout,
			Listener:         m,
		})

		shard.SetGateway(m.gatewayURL, gateway.SessionStartLimit.MaxConcurrency)

		m.shards[shardID] = shard
		m.enqueueLocked(shard)
	}

	m.mu.Unlock()

	m.debug(-1, fmt.Sprintf("Spawning shards: %v", shardIDs))

	return m.createShards(ctx)
}

func (m *Manager) shardIDs(shardCount int32) []int32 {
	if m.options.ShardIDs != "" {
		return returnRangeInt32(m.options.NodeCount, m.options.NodeID, m.options.ShardIDs, shardCount)
	}

	return returnRangeInt32(m.options.NodeCount, m.options.NodeID, fmt.Sprintf("0-%d", shardCount-1), shardCount)
}

func (m *Manager) resolveGateway(ctx context.Context) (*discord.GatewayBotResponse, error) {
	m.gatewayLimiter.Lock()

	gateway, err := m.resolver.GetGatewayBot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway: %w", err)
	}

	gatewayURL := gateway.URL
	if m.options.GatewayURL != "" {
		gatewayURL = m.options.GatewayURL
	}

	m.Logger.Info().
		Str("url", gatewayURL).
		Int32("recommended_shards", gateway.Shards).
		Int32("session_start_total", gateway.SessionStartLimit.Total).
		Int32("session_start_remaining", gateway.SessionStartLimit.Remaining).
		Int32("max_concurrency", gateway.SessionStartLimit.MaxConcurrency).
		Msg("Fetched gateway information")

	m.mu.Lock()

	m.gateway = gateway
	m.gatewayURL = gatewayURL

	shards := make([]*Shard, 0, len(m.shards))
	for _, shard := range m.shards {
		shards = append(shards, shard)
	}

	m.mu.Unlock()

	for _, shard := range shards {
		shard.SetGateway(gatewayURL, gateway.SessionStartLimit.MaxConcurrency)
	}

	return gateway, nil
}

// createShards connects queued shards one at a time, waiting SpawnDelay
// between them while the queue is not empty.
func (m *Manager) createShards(ctx context.Context) error {
	for {
		m.mu.Lock()

		if m.destroyed {
			m.mu.Unlock()

			return ErrManagerDestroyed
		}

		if len(m.shardQueue) == 0 {
			m.mu.Unlock()

			return nil
		}

		shard := m.shardQueue[0]
		m.shardQueue = m.shardQueue[1:]

		m.mu.Unlock()

		err := shard.Connect(ctx)
		if err != nil {
			var closeErr *CloseError

			switch {
			case errors.As(err, &closeErr) && !IsCloseCodeRecoverable(closeErr.Code):
				return &FatalCloseError{ShardID: shard.ShardID, Code: closeErr.Code}
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				m.debug(shard.ShardID, fmt.Sprintf("Failed to connect to the gateway, requeueing: %v", err))

				m.enqueue(shard)
			}
		}

		m.mu.Lock()
		remaining := len(m.shardQueue)
		m.mu.Unlock()

		if remaining == 0 {
			return nil
		}

		m.debug(-1, fmt.Sprintf("Shard queue size: %d; continuing in %s", remaining, m.options.SpawnDelay))

		if err := m.sleep(ctx, m.options.SpawnDelay); err != nil {
			return err
		}
	}
}

// reconnect respawns queued shards. Only one spawn loop runs at a time, a
// shard queued while one runs is picked up by it.
func (m *Manager) reconnect() {
	m.mu.Lock()

	if m.spawning || m.destroyed || m.status == ManagerStatusIdle {
		m.mu.Unlock()

		return
	}

	m.spawning = true

	if m.clientReady {
		m.setStatusLocked(ManagerStatusReconnecting)
	}

	ctx := m.ctx

	m.mu.Unlock()

	defer m.finishSpawning()

	for {
		err := m.reconnectOnce(ctx)
		if err == nil || ctx.Err() != nil || errors.Is(err, ErrManagerDestroyed) {
			return
		}

		m.debug(-1, fmt.Sprintf("Couldn't reconnect or fetch information about the gateway: %v", err))

		// ShardClosed has already surfaced the code. The shard is not
		// requeued, so carry on with the rest of the queue.
		var fatal *FatalCloseError
		if errors.As(err, &fatal) {
			continue
		}

		if rest.IsUnauthorized(err) {
			m.Logger.Error().Err(err).Msg("Token was invalidated")

			m.Events.Emit(Event{Type: EventInvalidated, ShardID: -1})
			m.Destroy()

			return
		}

		m.debug(-1, fmt.Sprintf("Possible network error occurred. Retrying in %s", m.options.ReconnectBackoff))

		if err := m.sleep(ctx, m.options.ReconnectBackoff); err != nil {
			return
		}
	}
}

func (m *Manager) reconnectOnce(ctx context.Context) error {
	if _, err := m.resolveGateway(ctx); err != nil {
		return err
	}

	return m.createShards(ctx)
}

func (m *Manager) finishSpawning() {
	m.mu.Lock()
	m.spawning = false
	pending := len(m.shardQueue) > 0 && !m.destroyed && m.status != ManagerStatusIdle
	m.mu.Unlock()

	if pending {
		go m.reconnect()

		return
	}

	m.checkShardsReady()
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return ErrManagerDestroyed
	case <-timer.C:
		return nil
	}
}

func (m *Manager) enqueue(shard *Shard) {
	m.mu.Lock()
	m.enqueueLocked(shard)
	m.mu.Unlock()
}

func (m *Manager) enqueueLocked(shard *Shard) {
	if m.destroyed {
		return
	}

	for _, queued := range m.shardQueue {
		if queued == shard {
			return
		}
	}

	m.shardQueue = append(m.shardQueue, shard)
}

// checkShardsReady marks the fleet ready once every shard is ready.
func (m *Manager) checkShardsReady() {
	m.mu.Lock()

	if m.destroyed || m.totalShards == 0 || len(m.shards) != m.totalShards {
		m.mu.Unlock()

		return
	}

	shards := make([]*Shard, 0, len(m.shards))
	for _, shard := range m.shards {
		shards = append(shards, shard)
	}

	m.mu.Unlock()

	for _, shard := range shards {
		if shard.Status() != ShardStatusReady {
			return
		}
	}

	m.mu.Lock()

	if m.clientReady {
		if !m.spawning && m.status == ManagerStatusReconnecting {
			m.setStatusLocked(ManagerStatusReady)
		}

		m.mu.Unlock()

		return
	}

	m.mu.Unlock()

	m.triggerClientReady()
}

// triggerClientReady runs once. The backlog is replayed in arrival order
// before new dispatches are let through.
func (m *Manager) triggerClientReady() {
	m.mu.Lock()

	if m.clientReady {
		m.mu.Unlock()

		return
	}

	m.clientReady = true
	m.readyAt = time.Now()
	m.setStatusLocked(ManagerStatusReady)

	m.mu.Unlock()

	m.Logger.Info().Msg("Every shard is ready")

	m.Events.Emit(Event{Type: EventClientReady, ShardID: -1})

	m.dispatchMu.Lock()

	backlog := m.backlog
	m.backlog = nil

	for _, item := range backlog {
		m.deliver(item.shard, item.payload)
	}

	m.dispatchReady.Store(true)

	UpdateBacklog(m.options.Identifier, 0)

	m.dispatchMu.Unlock()
}

func (m *Manager) deliver(shard *Shard, payload *discord.GatewayPayload) {
	m.Events.Emit(Event{Type: EventDispatch, ShardID: shard.ShardID, Payload: payload})
}

func (m *Manager) ShardDispatch(shard *Shard, payload *discord.GatewayPayload) {
	if m.dispatchReady.Load() {
		m.deliver(shard, payload)

		return
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	if m.dispatchReady.Load() || beforeReadyWhitelist[payload.Type] {
		m.deliver(shard, payload)

		return
	}

	m.backlog = append(m.backlog, backlogItem{payload: payload, shard: shard})

	UpdateBacklog(m.options.Identifier, len(m.backlog))
}

func (m *Manager) ShardReady(shard *Shard, unavailableGuilds []discord.Snowflake) {
	m.Events.Emit(Event{Type: EventShardReady, ShardID: shard.ShardID, UnavailableGuilds: unavailableGuilds})

	m.checkShardsReady()
}

func (m *Manager) ShardResumed(shard *Shard, replayed int64) {
	m.Events.Emit(Event{Type: EventShardResume, ShardID: shard.ShardID, Replayed: replayed})

	m.checkShardsReady()
}

func (m *Manager) ShardInvalidSession(shard *Shard) {
	m.Events.Emit(Event{Type: EventShardReconnecting, ShardID: shard.ShardID})
}

func (m *Manager) ShardDestroyed(shard *Shard) {
	m.debug(shard.ShardID, "Shard was destroyed but no connection was present, reconnecting")

	m.Events.Emit(Event{Type: EventShardReconnecting, ShardID: shard.ShardID})

	m.enqueue(shard)

	go m.reconnect()
}

func (m *Manager) ShardClosed(shard *Shard, code int) {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()

	if (code == discord.CloseNormalClosure && destroyed) || !IsCloseCodeRecoverable(code) {
		if !IsCloseCodeRecoverable(code) {
			m.Logger.Error().Int32("shard_id", shard.ShardID).Int("code", code).Str("reason", closeCodeReason(code)).Msg("Shard closed with an unrecoverable code")
		}

		m.Events.Emit(Event{Type: EventShardDisconnect, ShardID: shard.ShardID, Code: code})

		return
	}

	if destroyed {
		return
	}

	if !IsCloseCodeResumable(code) {
		shard.ClearSession()
	}

	RecordReconnect(m.options.Identifier, code)

	m.Events.Emit(Event{Type: EventShardReconnecting, ShardID: shard.ShardID})

	m.enqueue(shard)

	if shard.SessionID() != "" {
		m.debug(shard.ShardID, "Session id is present, attempting an immediate reconnect")
	}

	go m.reconnect()
}

// Broadcast sends a payload to every connected shard.
func (m *Manager) Broadcast(op discord.GatewayOp, data any) {
	for _, shard := range m.Shards() {
		if err := shard.Send(op, data, false); err != nil && !errors.Is(err, ErrShardNotConnected) {
			m.Logger.Warn().Err(err).Int32("shard_id", shard.ShardID).Msg("Failed to broadcast payload")
		}
	}
}

// UpdatePresence sends a presence update on every connected shard.
func (m *Manager) UpdatePresence(presence *discord.UpdateStatus) {
	for _, shard := range m.Shards() {
		if err := shard.UpdatePresence(presence); err != nil && !errors.Is(err, ErrShardNotConnected) {
			m.Logger.Warn().Err(err).Int32("shard_id", shard.ShardID).Msg("Failed to update presence")
		}
	}
}

// Ping returns the average heartbeat latency of shards that have one.
func (m *Manager) Ping() time.Duration {
	var (
		total time.Duration
		count int
	)

	for _, shard := range m.Shards() {
		if ping := shard.Ping(); ping >= 0 {
			total += ping
			count++
		}
	}

	if count == 0 {
		return -1
	}

	return total / time.Duration(count)
}

// Destroy stops every shard without reconnecting them. It is safe to call
// more than once.
func (m *Manager) Destroy() {
	m.mu.Lock()

	if m.destroyed {
		m.mu.Unlock()

		return
	}

	m.destroyed = true
	m.shardQueue = nil
	m.setStatusLocked(ManagerStatusDestroyed)

	m.mu.Unlock()

	m.debug(-1, "Manager was destroyed")

	m.cancel()

	for _, shard := range m.Shards() {
		shard.Destroy(DestroyOptions{Code: discord.CloseNormalClosure, Reset: true})
	}
}

func (m *Manager) Status() ManagerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

func (m *Manager) Shard(shardID int32) (*Shard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shard, ok := m.shards[shardID]

	return shard, ok
}

// Shards returns the shards ordered by id.
func (m *Manager) Shards() []*Shard {
	m.mu.Lock()

	shards := make([]*Shard, 0, len(m.shards))
	for _, shard := range m.shards {
		shards = append(shards, shard)
	}

	m.mu.Unlock()

	sort.Slice(shards, func(i, j int) bool { return shards[i].ShardID < shards[j].ShardID })

	return shards
}

func (m *Manager) ShardCount() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.shardCount
}

// ManagerSnapshot is the fleet as shown in the status api.
type ManagerSnapshot struct {
	Identifier string          `json:"identifier"`
	Status     ManagerStatus   `json:"status"`
	ShardCount int32           `json:"shard_count"`
	Ping       int64           `json:"ping_ms"`
	ReadyAt    *time.Time      `json:"ready_at,omitempty"`
	Queued     []int32         `json:"queued"`
	Shards     []ShardSnapshot `json:"shards"`
}

func (m *Manager) Snapshot() ManagerSnapshot {
	m.mu.Lock()

	snapshot := ManagerSnapshot{
		Identifier: m.options.Identifier,
		Status:     m.status,
		ShardCount: m.shardCount,
		Queued:     make([]int32, 0, len(m.shardQueue)),
	}

	if m.clientReady {
		readyAt := m.readyAt
		snapshot.ReadyAt = &readyAt
	}

	for _, shard := range m.shardQueue {
		snapshot.Queued = append(snapshot.Queued, shard.ShardID)
	}

	m.mu.Unlock()

	snapshot.Ping = m.Ping().Milliseconds()

	for _, shard := range m.Shards() {
		snapshot.Shards = append(snapshot.Shards, shard.Snapshot())
	}

	return snapshot
}

func (m *Manager) setStatusLocked(status ManagerStatus) {
	m.status = status

	UpdateManagerStatus(m.options.Identifier, status)
}

// debug logs a lifecycle message and forwards it to the event bus.
func (m *Manager) debug(shardID int32, message string) {
	if shardID >= 0 {
		m.Logger.Debug().Int32("shard_id", shardID).Msg(message)
	} else {
		m.Logger.Debug().Msg(message)
	}

	m.Events.Emit(Event{Type: EventDebug, ShardID: shardID, Message: message})
}
