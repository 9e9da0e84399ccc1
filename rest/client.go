package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/rs/zerolog"
	gotils_strconv "github.com/savsgio/gotils/strconv"
)

const (
	DefaultRequestTimeout  = 15 * time.Second
	DefaultRetryLimit      = 1
	DefaultTimeOffset      = 500 * time.Millisecond
	DefaultGlobalRateLimit = 50

	// Reaction routes have sub-limits discord does not report in headers.
	ReactionGracePeriod = 250 * time.Millisecond
)

// Options configures a Client. Start from DefaultOptions.
type Options struct {
	Logger     zerolog.Logger
	HTTPClient *http.Client

	BaseURL   string
	Version   int
	Token     string
	UserAgent string

	// Timeout of a single attempt.
	RequestTimeout time.Duration

	// Retries for transport errors and 5xx responses.
	RetryLimit int

	// Added to every rate limit wait to absorb latency.
	TimeOffset time.Duration

	// Requests per second across every route. <= 0 disables the local budget.
	GlobalRateLimit int

	// Warn every N invalid requests. <= 0 disables warnings.
	InvalidRequestWarningInterval int

	RejectOnRateLimit RejectPolicy

	Hooks Hooks
}

func DefaultOptions() Options {
	return Options{
		Logger:          zerolog.Nop(),
		HTTPClient:      &http.Client{},
		BaseURL:         discord.EndpointDiscord,
		Version:         discord.GatewayVersion,
		UserAgent:       "DiscordBot (https://github.com/WelcomerTeam/Toast, dev)",
		RequestTimeout:  DefaultRequestTimeout,
		RetryLimit:      DefaultRetryLimit,
		TimeOffset:      DefaultTimeOffset,
		GlobalRateLimit: DefaultGlobalRateLimit,
	}
}

// Client executes api requests. Requests on the same bucket run one at a
// time in submission order. Requests on different buckets run concurrently
// and only share the global budget.
type Client struct {
	Logger zerolog.Logger

	options Options

	global  *globalBudget
	invalid *InvalidRequestTracker

	bucketsMu sync.Mutex
	buckets   map[string]*bucket

	now func() time.Time
}

func NewClient(options Options) *Client {
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{}
	}

	if options.BaseURL == "" {
		options.BaseURL = discord.EndpointDiscord
	}

	if options.Version == 0 {
		options.Version = discord.GatewayVersion
	}

	if options.RequestTimeout <= 0 {
		options.RequestTimeout = DefaultRequestTimeout
	}

	return &Client{
		Logger:  options.Logger,
		options: options,
		global:  newGlobalBudget(options.GlobalRateLimit),
		invalid: NewInvalidRequestTracker(options.InvalidRequestWarningInterval),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Request is a single api call.
type Request struct {
	Route

	Query url.Values

	// Body is sent as JSON unless it is a []byte.
	Body        any
	ContentType string

	Headers http.Header

	// Reason is sent as the audit log reason.
	Reason string

	NoAuth bool
}

// Response is a completed 2xx or 3xx response.
type Response struct {
	Header http.Header
	Body   []byte
	Status int
}

// Do executes the request, waiting for its bucket and the global budget.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if !req.NoAuth && c.options.Token == "" {
		return nil, ErrMissingToken
	}

	if req.Bucket == "" {
		req.Bucket = BucketKey(req.Method, req.Path)
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	b := c.bucket(req.Bucket)

	if err := b.queue.Wait(ctx); err != nil {
		return nil, err
	}

	defer b.queue.Shift()

	return c.execute(ctx, req, b, body, contentType)
}

// Fetch executes the request and decodes the body into out.
func (c *Client) Fetch(ctx context.Context, req *Request, out any) error {
	res, err := c.Do(ctx, req)
	if err != nil {
		return err
	}

	if out == nil || len(res.Body) == 0 {
		return nil
	}

	if err := toastjson.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetGatewayBot returns the gateway url, recommended shards and session
// start limit of the token.
func (c *Client) GetGatewayBot(ctx context.Context) (*discord.GatewayBotResponse, error) {
	var gateway discord.GatewayBotResponse

	if err := c.Fetch(ctx, &Request{Route: GatewayBot()}, &gateway); err != nil {
		return nil, fmt.Errorf("failed to get gateway: %w", err)
	}

	return &gateway, nil
}

// Bucket returns the state of the bucket with the given key. The copy is
// only consistent while no request holds the bucket.
func (c *Client) Bucket(key string) (BucketSnapshot, bool) {
	c.bucketsMu.Lock()
	b, ok := c.buckets[key]
	c.bucketsMu.Unlock()

	if !ok {
		return BucketSnapshot{}, false
	}

	queued := b.queue.Remaining()

	return BucketSnapshot{
		Key:       b.key,
		Limit:     b.limit,
		Remaining: b.remaining,
		ResetAt:   b.resetAt,
		Queued:    queued,
	}, true
}

// InvalidRequests returns the invalid requests counted in the current window.
func (c *Client) InvalidRequests() int {
	return c.invalid.Count()
}

func (c *Client) bucket(key string) *bucket {
	c.bucketsMu.Lock()
	defer c.bucketsMu.Unlock()

	b, ok := c.buckets[key]
	if !ok {
		b = newBucket(key)
		c.buckets[key] = b
	}

	return b
}

func (c *Client) execute(ctx context.Context, req *Request, b *bucket, body []byte, contentType string) (*Response, error) {
	logger := c.Logger.With().Str("route", b.key).Logger()

	retries := 0

	for {
		if err := c.waitForLimits(ctx, req, b); err != nil {
			return nil, err
		}

		data := RequestData{
			Method:  req.Method,
			Path:    req.Path,
			Route:   b.key,
			Attempt: retries + 1,
		}
		c.options.Hooks.apiRequest(data)

		now := c.now()

		res, err := c.send(ctx, req, body, contentType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if retries < c.options.RetryLimit {
				retries++

				logger.Debug().Err(err).Int("retries", retries).Msg("Request failed, retrying")

				continue
			}

			return nil, &HTTPError{Method: req.Method, Path: req.Path, Err: err}
		}

		response := ResponseData{
			RequestData: data,
			Status:      res.Status,
			Duration:    c.now().Sub(now),
		}
		c.options.Hooks.apiResponse(response)
		recordResponse(response)

		logger.Trace().Int("status", res.Status).Msg(gotils_strconv.B2S(res.Body))

		sublimit := c.updateBucket(b, res.Header)

		if res.Status == http.StatusUnauthorized || res.Status == http.StatusForbidden || res.Status == http.StatusTooManyRequests {
			c.recordInvalid()
		}

		switch {
		case res.Status < http.StatusBadRequest:
			return res, nil
		case res.Status == http.StatusTooManyRequests:
			logger.Debug().
				Dur("sublimit", sublimit).
				Bool("global", res.Header.Get("x-ratelimit-global") != "").
				Msg("Hit a 429 while executing a request")

			if sublimit > 0 {
				limit := RateLimitData{
					Timeout: sublimit,
					Limit:   b.limit,
					Method:  req.Method,
					Path:    req.Path,
					Route:   b.key,
				}

				if c.options.RejectOnRateLimit != nil && c.options.RejectOnRateLimit(limit) {
					return nil, &RateLimitError{limit}
				}

				if err := sleep(ctx, sublimit); err != nil {
					return nil, err
				}
			}

			continue
		case res.Status < http.StatusInternalServerError:
			return nil, apiError(req, res)
		default:
			if retries < c.options.RetryLimit {
				retries++

				logger.Debug().Int("status", res.Status).Int("retries", retries).Msg("Server error, retrying")

				continue
			}

			return nil, &HTTPError{Method: req.Method, Path: req.Path, Status: res.Status}
		}
	}
}

// waitForLimits blocks until neither the global budget nor the bucket is
// exhausted, then spends one request from both. The global limit takes
// precedence.
func (c *Client) waitForLimits(ctx context.Context, req *Request, b *bucket) error {
	for {
		now := c.now()

		var (
			globalLimited bool
			globalResetAt time.Time
			globalLimit   int
		)

		bucketLimited := b.limited(now)
		if bucketLimited {
			globalLimited, globalResetAt, globalLimit = c.global.limited(now)
		} else {
			var ok bool

			ok, globalResetAt, globalLimit = c.global.acquire(now)
			if ok {
				b.take(now)

				return nil
			}

			globalLimited = true
		}

		data := RateLimitData{
			Method: req.Method,
			Path:   req.Path,
			Route:  b.key,
			Global: globalLimited,
		}

		if globalLimited {
			data.Limit = globalLimit
			data.Timeout = globalResetAt.Sub(now) + c.options.TimeOffset
		} else {
			data.Limit = b.limit
			data.Timeout = b.resetAt.Sub(now) + c.options.TimeOffset
		}

		if data.Timeout < 0 {
			data.Timeout = 0
		}

		c.options.Hooks.rateLimit(data)
		recordRateLimit(data)

		c.Logger.Debug().
			Str("route", data.Route).
			Bool("global", data.Global).
			Dur("timeout", data.Timeout).
			Int("limit", data.Limit).
			Msg("Waiting for rate limit")

		if c.options.RejectOnRateLimit != nil && c.options.RejectOnRateLimit(data) {
			return &RateLimitError{data}
		}

		var err error

		if globalLimited {
			err = c.global.wait(ctx, data.Timeout)
		} else {
			err = sleep(ctx, data.Timeout)
		}

		if err != nil {
			return err
		}
	}
}

// updateBucket applies the rate limit headers of a response. It returns the
// retry delay of a sub-limit, which must not touch the bucket itself.
func (c *Client) updateBucket(b *bucket, header http.Header) time.Duration {
	now := c.now()
	serverDate := header.Get("date")

	limit := header.Get("x-ratelimit-limit")
	remaining := header.Get("x-ratelimit-remaining")
	reset := header.Get("x-ratelimit-reset")
	resetAfter := header.Get("x-ratelimit-reset-after")

	if i, err := strconv.Atoi(limit); err == nil {
		b.limit = i
	}

	if i, err := strconv.Atoi(remaining); err == nil {
		b.remaining = i
	}

	if reset != "" || resetAfter != "" {
		b.resetAt = calculateReset(reset, resetAfter, apiOffset(serverDate, now), now)
	}

	if resetAfter == "" && isReactionRoute(b.key) {
		b.resetAt = now.Add(ReactionGracePeriod)
	}

	retryAfter := parseSeconds(header.Get("retry-after"))
	if retryAfter <= 0 {
		return 0
	}

	if header.Get("x-ratelimit-global") != "" {
		c.global.exhaust(now, retryAfter)

		return 0
	}

	if !b.limited(now) {
		return retryAfter
	}

	return 0
}

func (c *Client) recordInvalid() {
	warning, ok := c.invalid.Record()

	RequestMetrics.InvalidRequests.Set(float64(c.invalid.Count()))

	if !ok {
		return
	}

	c.Logger.Warn().
		Int("count", warning.Count).
		Dur("remaining", warning.RemainingTime).
		Msg("Approaching the invalid request limit")

	c.options.Hooks.invalidRequestWarning(warning)
}

func (c *Client) send(ctx context.Context, req *Request, body []byte, contentType string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.RequestTimeout)
	defer cancel()

	endpoint := c.options.BaseURL + "/v" + strconv.Itoa(c.options.Version) + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	httpReq.Header.Set("User-Agent", c.options.UserAgent)

	if !req.NoAuth {
		httpReq.Header.Set("Authorization", authorization(c.options.Token))
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if req.Reason != "" {
		httpReq.Header.Set("X-Audit-Log-Reason", url.PathEscape(req.Reason))
	}

	resp, err := c.options.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to do request: %w", err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		Header: resp.Header,
		Body:   data,
		Status: resp.StatusCode,
	}, nil
}

func apiError(req *Request, res *Response) error {
	var message discord.ErrorMessage

	if err := toastjson.Unmarshal(res.Body, &message); err != nil {
		return &HTTPError{
			Method: req.Method,
			Path:   req.Path,
			Status: res.Status,
			Err:    fmt.Errorf("failed to decode error: %w", err),
		}
	}

	return &DiscordAPIError{
		Method:       req.Method,
		Path:         req.Path,
		Status:       res.Status,
		ErrorMessage: message,
	}
}

func encodeBody(req *Request) ([]byte, string, error) {
	switch body := req.Body.(type) {
	case nil:
		return nil, req.ContentType, nil
	case []byte:
		return body, req.ContentType, nil
	default:
		data, err := toastjson.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal body: %w", err)
		}

		return data, "application/json", nil
	}
}

func authorization(token string) string {
	if strings.HasPrefix(token, "Bot ") || strings.HasPrefix(token, "Bearer ") {
		return token
	}

	return "Bot " + token
}

// apiOffset is how far the api clock is ahead of ours.
func apiOffset(serverDate string, now time.Time) time.Duration {
	if serverDate == "" {
		return 0
	}

	t, err := http.ParseTime(serverDate)
	if err != nil {
		return 0
	}

	return t.Sub(now)
}

// calculateReset prefers the relative reset-after over the absolute reset,
// which is corrected by the clock offset.
func calculateReset(reset, resetAfter string, offset time.Duration, now time.Time) time.Time {
	if resetAfter != "" {
		return now.Add(parseSeconds(resetAfter))
	}

	seconds, err := strconv.ParseFloat(reset, 64)
	if err != nil {
		return now
	}

	return time.UnixMilli(int64(seconds * 1000)).Add(-offset)
}

func parseSeconds(value string) time.Duration {
	if value == "" {
		return 0
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
