package toast

import (
	"fmt"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/WelcomerTeam/czlib"
	"nhooyr.io/websocket"
)

// EncodeFrame encodes an outbound envelope.
func EncodeFrame(op discord.GatewayOp, data any) ([]byte, error) {
	frame, err := toastjson.Marshal(discord.SentPayload{
		Op:   op,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return frame, nil
}

// DecodeFrame decodes an inbound frame. Binary frames are zlib compressed
// json, as sent when identify asked for compression.
func DecodeFrame(messageType websocket.MessageType, data []byte) (*discord.GatewayPayload, error) {
	if messageType == websocket.MessageBinary {
		decompressed, err := czlib.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decompress: %w", ErrMalformedFrame, err)
		}

		data = decompressed
	}

	var payload discord.GatewayPayload

	if err := toastjson.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	return &payload, nil
}
