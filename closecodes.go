package toast

import "github.com/WelcomerTeam/Toast/discord"

// Close codes that end the shard. Reconnecting with them would fail the same way.
var unrecoverableCloseCodes = map[int]bool{
	discord.CloseAuthenticationFailed: true,
	discord.CloseInvalidShard:         true,
	discord.CloseShardingRequired:     true,
	discord.CloseInvalidIntents:       true,
	discord.CloseDisallowedIntents:    true,
}

// Close codes after which the session can not be resumed.
var unresumableCloseCodes = map[int]bool{
	discord.CloseRPCUnknownError:       true,
	discord.CloseRPCInvalidPermissions: true,
	discord.CloseRPCInvalidClientID:    true,
}

var closeCodeReasons = map[int]string{
	discord.CloseNormalClosure:        "normal closure",
	discord.CloseAbnormal:             "abnormal closure",
	discord.CloseInternalError:        "internal error",
	discord.CloseUnknownError:         "unknown error",
	discord.CloseUnknownOpCode:        "unknown opcode",
	discord.CloseDecodeError:          "decode error",
	discord.CloseNotAuthenticated:     "not authenticated",
	discord.CloseAuthenticationFailed: "authentication failed",
	discord.CloseAlreadyAuthenticated: "already authenticated",
	discord.CloseInvalidSeq:           "invalid sequence",
	discord.CloseRateLimited:          "rate limited",
	discord.CloseSessionTimeout:       "session timed out",
	discord.CloseInvalidShard:         "invalid shard",
	discord.CloseShardingRequired:     "sharding required",
	discord.CloseInvalidAPIVersion:    "invalid api version",
	discord.CloseInvalidIntents:       "invalid intents",
	discord.CloseDisallowedIntents:    "disallowed intents",
}

// IsCloseCodeRecoverable returns false for close codes that need external
// intervention, such as a bad token or a privileged intent that is not enabled.
func IsCloseCodeRecoverable(code int) bool {
	return !unrecoverableCloseCodes[code]
}

// IsCloseCodeResumable returns false for close codes that invalidate the session.
func IsCloseCodeResumable(code int) bool {
	return !unresumableCloseCodes[code]
}

func closeCodeReason(code int) string {
	if reason, ok := closeCodeReasons[code]; ok {
		return reason
	}

	return "unknown"
}
