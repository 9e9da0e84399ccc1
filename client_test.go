package toast

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyClient(t *testing.T) {
	var path, userAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		userAgent = r.Header.Get("User-Agent")

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewProxyClient(http.Client{}, srv.URL)
	require.NoError(t, err)

	resp, err := client.Get("https://discord.com/gateway/bot")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "/api/v10/gateway/bot", path)
	assert.Equal(t, UserAgent, userAgent)

	resp, err = client.Get("https://discord.com/api/v10/users/@me")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "/api/v10/users/@me", path)

	client.CloseIdleConnections()
}

func TestProxyClientInvalidURL(t *testing.T) {
	_, err := NewProxyClient(http.Client{}, "localhost")
	assert.Error(t, err)
}
