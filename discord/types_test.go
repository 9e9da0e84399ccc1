package discord

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeAcceptsStringAndNumber(t *testing.T) {
	var ready Ready

	err := jsoniter.Unmarshal([]byte(`{"session_id":"abc","guilds":[{"id":"81384788765712384","unavailable":true},{"id":41771983423143937}]}`), &ready)
	require.NoError(t, err)

	require.Len(t, ready.Guilds, 2)
	assert.Equal(t, Snowflake(81384788765712384), ready.Guilds[0].ID)
	assert.True(t, ready.Guilds[0].Unavailable)
	assert.Equal(t, Snowflake(41771983423143937), ready.Guilds[1].ID)
}

func TestSnowflakeMarshalsAsString(t *testing.T) {
	b, err := jsoniter.Marshal(UnavailableGuild{ID: 175928847299117063})
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"175928847299117063","unavailable":false}`, string(b))
}

func TestSnowflakeTime(t *testing.T) {
	s := Snowflake(175928847299117063)

	assert.Equal(t, int64(1462015105796), s.Time().UnixMilli())
}

func TestGatewayPayloadNullSequence(t *testing.T) {
	var payload GatewayPayload

	err := jsoniter.Unmarshal([]byte(`{"op":10,"d":{"heartbeat_interval":41250},"s":null,"t":null}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, GatewayOpHello, payload.Op)
	assert.Nil(t, payload.Sequence)
	assert.Empty(t, payload.Type)
}

func TestIntentHas(t *testing.T) {
	intents := IntentGuilds | IntentGuildMessages

	assert.True(t, intents.Has(IntentGuilds))
	assert.False(t, intents.Has(IntentGuildMembers))
}
