package rest

import (
	"strings"
	"time"
)

// RateLimitData describes a rate limit a request is about to wait for.
type RateLimitData struct {
	Timeout time.Duration
	Limit   int
	Method  string
	Path    string
	Route   string
	Global  bool
}

// RequestData describes a request as it is dispatched.
type RequestData struct {
	Method  string
	Path    string
	Route   string
	Attempt int
}

// ResponseData describes a response as it was received.
type ResponseData struct {
	RequestData
	Status   int
	Duration time.Duration
}

// Hooks are optional observers of the pipeline. They are called
// synchronously and must not block.
type Hooks struct {
	RateLimit             func(RateLimitData)
	InvalidRequestWarning func(InvalidRequestWarning)
	APIRequest            func(RequestData)
	APIResponse           func(ResponseData)
}

func (h *Hooks) rateLimit(data RateLimitData) {
	if h.RateLimit != nil {
		h.RateLimit(data)
	}
}

func (h *Hooks) invalidRequestWarning(warning InvalidRequestWarning) {
	if h.InvalidRequestWarning != nil {
		h.InvalidRequestWarning(warning)
	}
}

func (h *Hooks) apiRequest(data RequestData) {
	if h.APIRequest != nil {
		h.APIRequest(data)
	}
}

func (h *Hooks) apiResponse(data ResponseData) {
	if h.APIResponse != nil {
		h.APIResponse(data)
	}
}

// RejectPolicy decides whether a rate limited request fails with a
// RateLimitError instead of waiting. A nil policy always waits.
type RejectPolicy func(RateLimitData) bool

// RejectAll rejects every rate limited request.
func RejectAll() RejectPolicy {
	return func(RateLimitData) bool { return true }
}

// RejectRoutes rejects rate limited requests whose route or path starts
// with one of the prefixes.
func RejectRoutes(prefixes ...string) RejectPolicy {
	return func(data RateLimitData) bool {
		route := strings.ToLower(data.Route)
		path := strings.ToLower(data.Path)

		for _, prefix := range prefixes {
			prefix = strings.ToLower(prefix)

			if strings.HasPrefix(route, prefix) || strings.HasPrefix(path, prefix) {
				return true
			}
		}

		return false
	}
}
