package toast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestBuildIdentifyReplacesShardPlaceholder(t *testing.T) {
	options := IdentifyOptions{
		Token:   "token",
		Intents: discord.IntentGuilds | discord.IntentGuildMessages,
		Presence: &discord.UpdateStatus{
			Status: "online",
			Activities: []*discord.Activity{
				{Name: "Shard {{shard_id}}", State: "{{shard_id}}/{{shard_id}}"},
			},
		},
		LargeThreshold: 100,
	}

	identify := buildIdentify(options, 7, 8)

	assert.Equal(t, [2]int32{7, 8}, identify.Shard)
	assert.Equal(t, "Shard 7", identify.Presence.Activities[0].Name)
	assert.Equal(t, "7/7", identify.Presence.Activities[0].State)

	// The configured presence is shared by every shard.
	assert.Equal(t, "Shard {{shard_id}}", options.Presence.Activities[0].Name)
}

func TestBuildIdentifyWithoutPresence(t *testing.T) {
	identify := buildIdentify(IdentifyOptions{Token: "token"}, 0, 1)

	assert.Nil(t, identify.Presence)

	data, err := toastjson.Marshal(identify)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "presence")
}

func TestIdentifyViaURL(t *testing.T) {
	var (
		attempts = atomic.NewInt64(0)
		path     = atomic.NewString("")
		header   = atomic.NewString("")
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		header.Store(r.Header.Get("X-Identify"))

		if attempts.Inc() == 1 {
			w.Header().Set("X-Retry-After-Ms", "50")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	provider := NewIdentifyViaURL(srv.URL+"/identify/{shard_id}/{shard_count}/{max_concurrency}", map[string]string{"X-Identify": "yes"})
	provider.Client = srv.Client()

	start := time.Now()

	err := provider.Identify(context.Background(), IdentifyRequest{Token: "token", ShardID: 3, ShardCount: 8, MaxConcurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(2), attempts.Load())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, "/identify/3/8/2", path.Load())
	assert.Equal(t, "yes", header.Load())
}

func TestIdentifyViaURLCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Retry-After-Ms", "60000")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider := NewIdentifyViaURL(srv.URL, nil)
	provider.Client = srv.Client()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := provider.Identify(ctx, IdentifyRequest{Token: "token", ShardCount: 1, MaxConcurrency: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
