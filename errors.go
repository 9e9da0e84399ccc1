package toast

import (
	"errors"
	"fmt"
)

var (
	ErrManagerMissingToken  = errors.New("manager missing token")
	ErrManagerMissingShards = errors.New("manager missing shards")
	ErrManagerDestroyed     = errors.New("manager destroyed")
	ErrInvalidToken         = errors.New("invalid token")

	ErrShardConnectFailed            = errors.New("shard connect failed")
	ErrShardInvalidHeartbeatInterval = errors.New("shard invalid heartbeat interval")
	ErrShardInvalidSession           = errors.New("shard session invalidated")
	ErrShardDestroyed                = errors.New("shard destroyed")
	ErrShardNotConnected             = errors.New("shard not connected")

	ErrNoGatewayHandler = errors.New("no gateway handler found")
	ErrMalformedFrame   = errors.New("malformed frame")
)

// CloseError is returned by Shard.Connect when the connection closed
// before the shard became ready.
type CloseError struct {
	Code int
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("shard closed with code %d: %s", e.Code, closeCodeReason(e.Code))
}

// FatalCloseError is returned when a shard closed with a code that can
// not be recovered from by reconnecting.
type FatalCloseError struct {
	ShardID int32
	Code    int
}

func (e *FatalCloseError) Error() string {
	return fmt.Sprintf("shard %d closed with unrecoverable code %d: %s", e.ShardID, e.Code, closeCodeReason(e.Code))
}
