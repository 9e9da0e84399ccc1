package toast

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame(discord.GatewayOpHeartbeat, heartbeatSequence(-1))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":1,"d":null}`, string(frame))

	frame, err = EncodeFrame(discord.GatewayOpHeartbeat, heartbeatSequence(42))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":1,"d":42}`, string(frame))
}

func TestDecodeFrame(t *testing.T) {
	payload, err := DecodeFrame(websocket.MessageText, []byte(`{"op":0,"s":3,"t":"READY","d":{"session_id":"abc"}}`))
	require.NoError(t, err)

	assert.Equal(t, discord.GatewayOpDispatch, payload.Op)
	assert.Equal(t, discord.EventReady, payload.Type)
	require.NotNil(t, payload.Sequence)
	assert.Equal(t, int64(3), *payload.Sequence)
	assert.JSONEq(t, `{"session_id":"abc"}`, string(payload.Data))
}

func TestDecodeCompressedFrame(t *testing.T) {
	var buf bytes.Buffer

	writer := zlib.NewWriter(&buf)
	_, err := writer.Write([]byte(`{"op":10,"d":{"heartbeat_interval":41250}}`))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	payload, err := DecodeFrame(websocket.MessageBinary, buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, discord.GatewayOpHello, payload.Op)
	assert.Nil(t, payload.Sequence)
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := DecodeFrame(websocket.MessageText, []byte(`{"op":`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeFrame(websocket.MessageBinary, []byte(`not zlib`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
