package toast

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
)

var (
	StandardIdentifyLimit = 5 * time.Second
	IdentifyRateLimit     = StandardIdentifyLimit + (time.Millisecond * 500)
)

// ShardIDPlaceholder is replaced with the shard id in presence activities.
const ShardIDPlaceholder = "{{shard_id}}"

// IdentifyRequest describes a shard that is about to identify.
type IdentifyRequest struct {
	Token          string
	ShardID        int32
	ShardCount     int32
	MaxConcurrency int32
}

// IdentifyProvider blocks until a shard is allowed to identify.
type IdentifyProvider interface {
	Identify(ctx context.Context, request IdentifyRequest) error
}

// IdentifyOptions is the typed configuration identify payloads are built from.
type IdentifyOptions struct {
	Token          string
	Intents        discord.GatewayIntent
	Properties     discord.IdentifyProperties
	Presence       *discord.UpdateStatus
	LargeThreshold int32
	Compress       bool
}

// buildIdentify produces the identify payload for a shard. The options are
// left untouched, the presence is copied before placeholders are replaced.
func buildIdentify(options IdentifyOptions, shardID, shardCount int32) discord.Identify {
	return discord.Identify{
		Properties:     options.Properties,
		Presence:       shardPresence(options.Presence, shardID),
		Token:          options.Token,
		Shard:          [2]int32{shardID, shardCount},
		LargeThreshold: options.LargeThreshold,
		Intents:        options.Intents,
		Compress:       options.Compress,
	}
}

func shardPresence(presence *discord.UpdateStatus, shardID int32) *discord.UpdateStatus {
	if presence == nil {
		return nil
	}

	id := strconv.Itoa(int(shardID))

	result := *presence
	result.Activities = make([]*discord.Activity, 0, len(presence.Activities))

	for _, activity := range presence.Activities {
		if activity == nil {
			continue
		}

		copied := *activity
		copied.Name = strings.ReplaceAll(copied.Name, ShardIDPlaceholder, id)
		copied.State = strings.ReplaceAll(copied.State, ShardIDPlaceholder, id)

		result.Activities = append(result.Activities, &copied)
	}

	return &result
}
