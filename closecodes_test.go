package toast

import (
	"testing"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/stretchr/testify/assert"
)

func TestCloseCodePolicy(t *testing.T) {
	tests := []struct {
		code        int
		recoverable bool
		resumable   bool
	}{
		{discord.CloseNormalClosure, true, false},
		{discord.CloseAbnormal, true, true},
		{discord.CloseInternalError, true, true},
		{WebsocketReconnectCloseCode, true, true},
		{WebsocketZombieCloseCode, true, true},
		{discord.CloseRPCInvalidPermissions, true, false},
		{discord.CloseRPCInvalidClientID, true, false},
		{discord.CloseAuthenticationFailed, false, true},
		{discord.CloseInvalidShard, false, true},
		{discord.CloseShardingRequired, false, true},
		{discord.CloseInvalidIntents, false, true},
		{discord.CloseDisallowedIntents, false, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.recoverable, IsCloseCodeRecoverable(tt.code), "recoverable %d", tt.code)
		assert.Equal(t, tt.resumable, IsCloseCodeResumable(tt.code), "resumable %d", tt.code)
	}
}

func TestCloseErrors(t *testing.T) {
	assert.Equal(t, "unknown", closeCodeReason(4999))

	err := &FatalCloseError{ShardID: 3, Code: discord.CloseDisallowedIntents}
	assert.Contains(t, err.Error(), "disallowed intents")
	assert.Contains(t, (&CloseError{Code: discord.CloseInvalidSeq}).Error(), "invalid sequence")
}
