package toast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

const fakeTimeout = 5 * time.Second

type serverFrame struct {
	Op       discord.GatewayOp `json:"op"`
	Data     any               `json:"d"`
	Sequence *int64            `json:"s,omitempty"`
	Type     string            `json:"t,omitempty"`
}

// fakeGateway is an in-process gateway. Every accepted connection is sent on
// conns. Heartbeats are acked unless noAck is set.
type fakeGateway struct {
	t      *testing.T
	server *httptest.Server

	heartbeatInterval int32
	sendHello         bool
	noAck             bool

	// Runs on the connection goroutine for every received payload.
	onPayload func(conn *fakeConn, payload *discord.GatewayPayload)

	conns chan *fakeConn

	mu  sync.Mutex
	all []*fakeConn
}

type fakeConn struct {
	t    *testing.T
	conn *websocket.Conn

	received chan *discord.GatewayPayload
	closed   chan struct{}

	mu        sync.Mutex
	closeCode websocket.StatusCode
	sequence  int64
}

func newFakeGateway(t *testing.T, configure func(*fakeGateway)) *fakeGateway {
	t.Helper()

	gateway := &fakeGateway{
		t:                 t,
		heartbeatInterval: 45000,
		sendHello:         true,
		conns:             make(chan *fakeConn, 16),
	}

	if configure != nil {
		configure(gateway)
	}

	gateway.server = httptest.NewServer(http.HandlerFunc(gateway.handle))

	t.Cleanup(gateway.close)

	return gateway
}

func (g *fakeGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	fc := &fakeConn{
		t:         g.t,
		conn:      conn,
		received:  make(chan *discord.GatewayPayload, 256),
		closed:    make(chan struct{}),
		closeCode: -1,
	}

	g.mu.Lock()
	g.all = append(g.all, fc)
	g.mu.Unlock()

	g.conns <- fc

	if g.sendHello {
		fc.send(discord.GatewayOpHello, discord.Hello{HeartbeatInterval: g.heartbeatInterval})
	}

	defer close(fc.closed)

	for {
		messageType, data, err := conn.Read(context.Background())
		if err != nil {
			fc.mu.Lock()
			fc.closeCode = websocket.CloseStatus(err)
			fc.mu.Unlock()

			return
		}

		payload, err := DecodeFrame(messageType, data)
		if err != nil {
			continue
		}

		if payload.Op == discord.GatewayOpHeartbeat && !g.noAck {
			fc.send(discord.GatewayOpHeartbeatACK, nil)
		}

		if g.onPayload != nil {
			g.onPayload(fc, payload)
		}

		select {
		case fc.received <- payload:
		default:
		}
	}
}

func (g *fakeGateway) close() {
	g.mu.Lock()
	all := g.all
	g.mu.Unlock()

	for _, fc := range all {
		_ = fc.conn.CloseNow()
	}

	g.server.Close()
}

// accept waits for the next connection.
func (g *fakeGateway) accept() *fakeConn {
	g.t.Helper()

	select {
	case fc := <-g.conns:
		return fc
	case <-time.After(fakeTimeout):
		g.t.Fatal("timed out waiting for a connection")

		return nil
	}
}

func (c *fakeConn) send(op discord.GatewayOp, data any) {
	c.write(serverFrame{Op: op, Data: data})
}

// dispatch sends an event with the next sequence.
func (c *fakeConn) dispatch(eventType string, data any) int64 {
	c.mu.Lock()
	c.sequence++
	sequence := c.sequence
	c.mu.Unlock()

	c.write(serverFrame{Op: discord.GatewayOpDispatch, Data: data, Sequence: &sequence, Type: eventType})

	return sequence
}

func (c *fakeConn) dispatchWithSequence(eventType string, sequence int64, data any) {
	c.write(serverFrame{Op: discord.GatewayOpDispatch, Data: data, Sequence: &sequence, Type: eventType})
}

func (c *fakeConn) write(frame serverFrame) {
	data, err := toastjson.Marshal(frame)
	if err != nil {
		c.t.Errorf("failed to marshal frame: %v", err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fakeTimeout)
	defer cancel()

	// The client may already be gone.
	_ = c.conn.Write(ctx, websocket.MessageText, data)
}

// expect returns the next received payload with op, skipping heartbeats.
func (c *fakeConn) expect(op discord.GatewayOp) *discord.GatewayPayload {
	c.t.Helper()

	timeout := time.After(fakeTimeout)

	for {
		select {
		case payload := <-c.received:
			if payload.Op == op {
				return payload
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %s", op)

			return nil
		}
	}
}

func (c *fakeConn) closeWith(code websocket.StatusCode) {
	_ = c.conn.Close(code, "")
}

// waitClosed returns the close code the client sent.
func (c *fakeConn) waitClosed() websocket.StatusCode {
	c.t.Helper()

	select {
	case <-c.closed:
	case <-time.After(fakeTimeout):
		c.t.Fatal("timed out waiting for the client to close")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeCode
}

func readyPayload(sessionID, resumeURL string, guilds ...discord.Snowflake) discord.Ready {
	ready := discord.Ready{
		SessionID:        sessionID,
		ResumeGatewayURL: resumeURL,
		Guilds:           make([]discord.UnavailableGuild, 0, len(guilds)),
	}

	for _, guildID := range guilds {
		ready.Guilds = append(ready.Guilds, discord.UnavailableGuild{ID: guildID, Unavailable: true})
	}

	return ready
}

func requireData(t *testing.T, payload *discord.GatewayPayload, out any) {
	t.Helper()

	require.NoError(t, toastjson.Unmarshal(payload.Data, out))
}

// assertNullData checks that d was null on the wire. The decoder leaves a
// null RawMessage empty.
func assertNullData(t *testing.T, payload *discord.GatewayPayload) {
	t.Helper()

	if len(payload.Data) != 0 && string(payload.Data) != "null" {
		t.Errorf("Expected null data, but got %s", payload.Data)
	}
}
