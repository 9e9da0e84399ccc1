package rest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
)

var ErrMissingToken = errors.New("rest client missing token")

// DiscordAPIError is returned for 4xx responses other than 429. The error
// code and message are kept as discord sent them.
type DiscordAPIError struct {
	Method string
	Path   string
	Status int
	discord.ErrorMessage
}

func (e *DiscordAPIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s (code %d)", e.Method, e.Path, e.Status, e.Message, e.Code)
}

// HTTPError is returned when a request failed at the transport level or
// kept failing with a 5xx after every retry.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}

	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Server returns true if the request reached discord and got a 5xx.
func (e *HTTPError) Server() bool {
	return e.Status >= http.StatusInternalServerError
}

// RateLimitError is returned instead of waiting when the reject policy
// matched the rate limited route.
type RateLimitError struct {
	RateLimitData
}

func (e *RateLimitError) Error() string {
	scope := "route"
	if e.Global {
		scope = "global"
	}

	return fmt.Sprintf("%s %s: %s rate limit hit, retry in %s", e.Method, e.Path, scope, e.Timeout.Round(time.Millisecond))
}

// IsUnauthorized returns true if err is a 401 from the api, including one
// whose body could not be decoded such as a proxy's plain text reply.
func IsUnauthorized(err error) bool {
	var apiErr *DiscordAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized
	}

	var httpErr *HTTPError

	return errors.As(err, &httpErr) && httpErr.Status == http.StatusUnauthorized
}
