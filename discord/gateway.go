package discord

import (
	jsoniter "github.com/json-iterator/go"
)

// gateway.go contains the structures exchanged with discord's gateway.

// GatewayVersion is the gateway and api version the client speaks.
const GatewayVersion = 10

// GatewayOp represents the operation codes of a gateway message.
type GatewayOp uint8

const (
	GatewayOpDispatch GatewayOp = iota
	GatewayOpHeartbeat
	GatewayOpIdentify
	GatewayOpStatusUpdate
	GatewayOpVoiceStateUpdate
	_
	GatewayOpResume
	GatewayOpReconnect
	GatewayOpRequestGuildMembers
	GatewayOpInvalidSession
	GatewayOpHello
	GatewayOpHeartbeatACK
)

func (op GatewayOp) String() string {
	switch op {
	case GatewayOpDispatch:
		return "DISPATCH"
	case GatewayOpHeartbeat:
		return "HEARTBEAT"
	case GatewayOpIdentify:
		return "IDENTIFY"
	case GatewayOpStatusUpdate:
		return "PRESENCE_UPDATE"
	case GatewayOpVoiceStateUpdate:
		return "VOICE_STATE_UPDATE"
	case GatewayOpResume:
		return "RESUME"
	case GatewayOpReconnect:
		return "RECONNECT"
	case GatewayOpRequestGuildMembers:
		return "REQUEST_GUILD_MEMBERS"
	case GatewayOpInvalidSession:
		return "INVALID_SESSION"
	case GatewayOpHello:
		return "HELLO"
	case GatewayOpHeartbeatACK:
		return "HEARTBEAT_ACK"
	default:
		return "UNKNOWN"
	}
}

// GatewayIntent represents a bitflag for intents.
type GatewayIntent uint32

const (
	IntentGuilds GatewayIntent = 1 << iota
	IntentGuildMembers
	IntentGuildBans
	IntentGuildEmojis
	IntentGuildIntegrations
	IntentGuildWebhooks
	IntentGuildInvites
	IntentGuildVoiceStates
	IntentGuildPresences
	IntentGuildMessages
	IntentGuildMessageReactions
	IntentGuildMessageTyping
	IntentDirectMessages
	IntentDirectMessageReactions
	IntentDirectMessageTyping
	IntentMessageContent
)

// Has returns true if every intent in other is present.
func (i GatewayIntent) Has(other GatewayIntent) bool {
	return i&other == other
}

// Gateway close codes.
const (
	CloseUnknownError = 4000 + iota
	CloseUnknownOpCode
	CloseDecodeError
	CloseNotAuthenticated
	CloseAuthenticationFailed
	CloseAlreadyAuthenticated
	_
	CloseInvalidSeq
	CloseRateLimited
	CloseSessionTimeout
	CloseInvalidShard
	CloseShardingRequired
	CloseInvalidAPIVersion
	CloseInvalidIntents
	CloseDisallowedIntents
)

// Websocket close codes that are not gateway specific.
const (
	CloseNormalClosure = 1000
	CloseAbnormal      = 1006
	CloseInternalError = 1011
)

// Codes that share a value with the websocket layer but carry rpc meaning.
const (
	CloseRPCUnknownError       = 1000
	CloseRPCInvalidPermissions = 4006
	CloseRPCInvalidClientID    = 4007
)

// Dispatch event names the client inspects.
const (
	EventReady             = "READY"
	EventResumed           = "RESUMED"
	EventGuildCreate       = "GUILD_CREATE"
	EventGuildDelete       = "GUILD_DELETE"
	EventGuildMembersChunk = "GUILD_MEMBERS_CHUNK"
	EventGuildMemberAdd    = "GUILD_MEMBER_ADD"
	EventGuildMemberRemove = "GUILD_MEMBER_REMOVE"
)

// GatewayPayload represents the base payload received from discord gateway.
type GatewayPayload struct {
	Type     string              `json:"t"`
	Data     jsoniter.RawMessage `json:"d"`
	Sequence *int64              `json:"s"`
	Op       GatewayOp           `json:"op"`
}

// SentPayload represents the base payload we send to discords gateway.
type SentPayload struct {
	Data interface{} `json:"d"`
	Op   GatewayOp   `json:"op"`
}

// Gateway Events

// Hello is the first event received after connecting.
type Hello struct {
	HeartbeatInterval int32 `json:"heartbeat_interval"`
}

// Ready is the dispatch received after a successful identify.
type Ready struct {
	User             jsoniter.RawMessage `json:"user"`
	Application      jsoniter.RawMessage `json:"application"`
	SessionID        string              `json:"session_id"`
	ResumeGatewayURL string              `json:"resume_gateway_url"`
	Guilds           []UnavailableGuild  `json:"guilds"`
	Shard            []int32             `json:"shard,omitempty"`
	Version          int32               `json:"v"`
}

// UnavailableGuild is a guild stub as sent in READY and GUILD_DELETE.
type UnavailableGuild struct {
	ID          Snowflake `json:"id"`
	Unavailable bool      `json:"unavailable"`
}

// Gateway Commands

// Identify represents the initial handshake with the gateway.
type Identify struct {
	Properties     IdentifyProperties `json:"properties"`
	Presence       *UpdateStatus      `json:"presence,omitempty"`
	Token          string             `json:"token"`
	Shard          [2]int32           `json:"shard"`
	LargeThreshold int32              `json:"large_threshold,omitempty"`
	Intents        GatewayIntent      `json:"intents"`
	Compress       bool               `json:"compress"`
}

// IdentifyProperties are the extra properties sent in the identify packet.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Resume resumes a dropped gateway connection.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// UpdateStatus updates a client's presence.
type UpdateStatus struct {
	Since      *int64      `json:"since"`
	Status     string      `json:"status"`
	Activities []*Activity `json:"activities"`
	AFK        bool        `json:"afk"`
}

// ActivityType represents an activity's type.
type ActivityType int

const (
	ActivityTypeGame ActivityType = iota
	ActivityTypeStreaming
	ActivityTypeListening
	ActivityTypeWatching
	ActivityTypeCustom
	ActivityTypeCompeting
)

// Activity represents an activity as sent in a presence update.
type Activity struct {
	URL   *string      `json:"url,omitempty"`
	Name  string       `json:"name"`
	State string       `json:"state,omitempty"`
	Type  ActivityType `json:"type"`
}
