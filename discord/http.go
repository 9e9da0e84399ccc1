package discord

import (
	jsoniter "github.com/json-iterator/go"
)

const (
	EndpointDiscord = "https://discord.com/api"

	EndpointGateway    = "/gateway"
	EndpointGatewayBot = "/gateway/bot"
)

// GatewayBotResponse represents a GET /gateway/bot response.
type GatewayBotResponse struct {
	URL               string            `json:"url"`
	Shards            int32             `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// SessionStartLimit is the identify budget of the current token.
type SessionStartLimit struct {
	Total          int32 `json:"total"`
	Remaining      int32 `json:"remaining"`
	ResetAfter     int32 `json:"reset_after"`
	MaxConcurrency int32 `json:"max_concurrency"`
}

// ErrorMessage represents the body of an api error response.
type ErrorMessage struct {
	Message string              `json:"message"`
	Errors  jsoniter.RawMessage `json:"errors"`
	Code    int32               `json:"code"`
}
