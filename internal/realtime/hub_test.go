package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop())
	r := gin.New()
	r.GET("/ws", ServeWs(hub, zap.NewNop()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func send(t *testing.T, conn *websocket.Conn, event, data string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(WSMessage{Event: event, Data: json.RawMessage(data)}))
}

func receive(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var msg WSMessage
	err := conn.ReadJSON(&msg)
	assert.Error(t, err, "unexpected message %q", msg.Event)
}

func TestOfferReachesOthersOnly(t *testing.T) {
	hub, srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	send(t, a, "offer", `{"sdp":"x"}`)

	got := receive(t, b)
	assert.Equal(t, "offer", got.Event)
	assert.JSONEq(t, `{"sdp":"x"}`, string(got.Data))
	assertSilent(t, a)
}

func TestGlobalEventEchoesToSender(t *testing.T) {
	hub, srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	send(t, a, "one-to-one-message", `{"text":"hi","n":[1,2]}`)

	for _, conn := range []*websocket.Conn{a, b} {
		got := receive(t, conn)
		assert.Equal(t, "one-to-one-message", got.Event)
		assert.JSONEq(t, `{"text":"hi","n":[1,2]}`, string(got.Data))
	}
}

func TestUnknownEventIsDropped(t *testing.T) {
	hub, srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	send(t, a, "hang-up-everyone", `{}`)
	assertSilent(t, b)
	assertSilent(t, a)
}

func TestClosedPeerDoesNotBreakDelivery(t *testing.T) {
	hub, srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	c := dial(t, srv)
	waitForClients(t, hub, 3)

	require.NoError(t, c.Close())
	waitForClients(t, hub, 2)

	send(t, a, "ice-candidate", `{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`)
	got := receive(t, b)
	assert.Equal(t, "ice-candidate", got.Event)
}

func TestRelayPolicies(t *testing.T) {
	others := []string{"calling", "ringing", "accepting", "declined", "receiver-busy", "change-event", "offer", "answer", "ice-candidate"}
	everyone := []string{"recording", "recording-save", "recording-delete", "one-to-one-message", "one-to-one-delete", "one-to-one-edited", "message-read"}

	for _, ev := range others {
		t.Run(ev, func(t *testing.T) {
			hub := NewHub(nil)
			a := &Client{ID: "a", send: make(chan WSMessage, 1)}
			b := &Client{ID: "b", send: make(chan WSMessage, 1)}
			hub.Register(a)
			hub.Register(b)

			assert.Equal(t, PolicyOthers, hub.Relay(a, WSMessage{Event: ev}))
			assert.Len(t, a.send, 0)
			assert.Len(t, b.send, 1)
		})
	}
	for _, ev := range everyone {
		t.Run(ev, func(t *testing.T) {
			hub := NewHub(nil)
			a := &Client{ID: "a", send: make(chan WSMessage, 1)}
			b := &Client{ID: "b", send: make(chan WSMessage, 1)}
			hub.Register(a)
			hub.Register(b)

			assert.Equal(t, PolicyEveryone, hub.Relay(a, WSMessage{Event: ev}))
			assert.Len(t, a.send, 1)
			assert.Len(t, b.send, 1)
		})
	}
}

func TestFullBufferDropsSilently(t *testing.T) {
	hub := NewHub(nil)
	a := &Client{ID: "a", send: make(chan WSMessage, 1)}
	b := &Client{ID: "b", send: make(chan WSMessage, 1)}
	hub.Register(a)
	hub.Register(b)

	hub.Relay(a, WSMessage{Event: "offer"})
	hub.Relay(a, WSMessage{Event: "answer"})

	require.Len(t, b.send, 1)
	assert.Equal(t, "offer", (<-b.send).Event)
}

func TestUnregisterTwice(t *testing.T) {
	hub := NewHub(nil)
	a := &Client{ID: "a", send: make(chan WSMessage, 1)}
	hub.Register(a)
	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 0, hub.Count())

	// delivery to a departed client is a no-op
	hub.Broadcast(WSMessage{Event: "recording"})
}
