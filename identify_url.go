package toast

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/WelcomerTeam/Toast/toastjson"
)

// IdentifyViaURL asks an external coordinator whether a shard may identify.
// This lets several processes sharing a token respect one identify budget.
//
// The URL may contain formatting tags:
// - {shard_id}
// - {shard_count}
// - {token_hash}
// - {max_concurrency}
//
// A 200 or 204 allows the identify. Any other response is retried after the
// `X-Retry-After-Ms` header, or StandardIdentifyLimit when it is missing.
type IdentifyViaURL struct {
	URL     string
	Headers map[string]string

	Client *http.Client
}

func NewIdentifyViaURL(identifyURL string, headers map[string]string) *IdentifyViaURL {
	return &IdentifyViaURL{
		URL:     identifyURL,
		Headers: headers,
		Client:  http.DefaultClient,
	}
}

type identifyURLPayload struct {
	ShardID        int32  `json:"shard_id"`
	ShardCount     int32  `json:"shard_count"`
	MaxConcurrency int32  `json:"max_concurrency"`
	TokenHash      string `json:"token_hash"`
}

func (i *IdentifyViaURL) Identify(ctx context.Context, request IdentifyRequest) error {
	method := sha256.New()
	method.Write([]byte(request.Token))
	tokenHash := hex.EncodeToString(method.Sum(nil))

	identifyURL := strings.NewReplacer(
		"{shard_id}", strconv.Itoa(int(request.ShardID)),
		"{shard_count}", strconv.Itoa(int(request.ShardCount)),
		"{token_hash}", tokenHash,
		"{max_concurrency}", strconv.Itoa(int(request.MaxConcurrency)),
	).Replace(i.URL)

	if _, err := url.Parse(identifyURL); err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	body, err := toastjson.Marshal(identifyURLPayload{
		ShardID:        request.ShardID,
		ShardCount:     request.ShardCount,
		MaxConcurrency: request.MaxConcurrency,
		TokenHash:      tokenHash,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal identify payload: %w", err)
	}

	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}

	for {
		retryAfter, err := i.attempt(ctx, client, identifyURL, body)
		if err != nil {
			return err
		}

		if retryAfter == 0 {
			return nil
		}

		timer := time.NewTimer(retryAfter)

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}

// attempt returns 0 when the identify is allowed.
func (i *IdentifyViaURL) attempt(ctx context.Context, client *http.Client, identifyURL string, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, identifyURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create identify request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range i.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		return StandardIdentifyLimit, nil
	}

	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		return 0, nil
	}

	if retryAfterMs, _ := strconv.Atoi(resp.Header.Get("X-Retry-After-Ms")); retryAfterMs > 0 {
		return time.Duration(retryAfterMs) * time.Millisecond, nil
	}

	return StandardIdentifyLimit, nil
}
