package toast

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/WelcomerTeam/Toast/discord"
)

const Version = "0.1.0"

var UserAgent = fmt.Sprintf("DiscordBot (https://github.com/WelcomerTeam/Toast, %s)", Version)

// NewProxyClient creates an HTTP client that redirects all requests through a specified host.
// This is useful when using a proxy such as twilight or nirn.
func NewProxyClient(client http.Client, host string) (*http.Client, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy url: %w", err)
	}

	if hostURL.Scheme == "" || hostURL.Host == "" {
		return nil, fmt.Errorf("proxy url must include a scheme and host: %q", host)
	}

	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}

	client.Transport = &proxyTransport{
		host:      *hostURL,
		transport: client.Transport,
	}

	return &client, nil
}

type proxyTransport struct {
	host      url.URL
	transport http.RoundTripper
}

func (t *proxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	proxyReq := req.Clone(req.Context())

	// Keep the original path and query.
	proxyReq.URL.Host = t.host.Host
	proxyReq.URL.Scheme = t.host.Scheme
	proxyReq.Host = t.host.Host

	if !strings.HasPrefix(proxyReq.URL.Path, "/api") {
		proxyReq.URL.Path = fmt.Sprintf("/api/v%d%s", discord.GatewayVersion, proxyReq.URL.Path)
	}

	proxyReq.Header.Set("User-Agent", UserAgent)

	resp, err := t.transport.RoundTrip(proxyReq)
	if err != nil {
		return nil, fmt.Errorf("failed to round trip: %w", err)
	}

	return resp, nil
}
