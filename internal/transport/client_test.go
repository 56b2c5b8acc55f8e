package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

func TestBackoffDelaySequence(t *testing.T) {
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, backoffDelay(attempt), "attempt %d", attempt)
	}

	// Past 2^5 seconds the delay caps at 30s.
	assert.Equal(t, 30*time.Second, backoffDelay(5))
	assert.Equal(t, 30*time.Second, backoffDelay(9))
	assert.Equal(t, 30*time.Second, backoffDelay(40))
}

func TestDecodeFrameSplitsBatch(t *testing.T) {
	frame := []byte(`{"type":"chat","payload":{"text":"a"}}` + "\n" +
		`{"type":"chat","payload":{"text":"b"}}` + "\n")

	msgs := decodeFrame(frame)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Chat().Text)
	assert.Equal(t, "b", msgs[1].Chat().Text)
}

func TestDecodeFrameSkipsBadRecord(t *testing.T) {
	frame := []byte(`{"type":"chat","payload":{"text":"a"}}` + "\n" +
		`not-json` + "\n" +
		`{"type":"chat","payload":{"text":"c"}}`)

	msgs := decodeFrame(frame)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Chat().Text)
	assert.Equal(t, "c", msgs[1].Chat().Text)
}

func TestSendWhenNotConnected(t *testing.T) {
	c := NewClient("ws://localhost:0/ws", clockwork.NewFakeClock(), Handlers{})

	err := c.Send(protocol.NewChat("hello"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestKickedPermanentlyDisablesConnect(t *testing.T) {
	c := NewClient("ws://localhost:0/ws", clockwork.NewFakeClock(), Handlers{})
	c.KickedClose()

	// Even an externally triggered connect must not re-establish the channel.
	assert.ErrorIs(t, c.Connect(), ErrKicked)
	assert.ErrorIs(t, c.Connect(), ErrKicked)
	assert.False(t, c.Connected())
}

func TestCloseDisablesConnect(t *testing.T) {
	c := NewClient("ws://localhost:0/ws", clockwork.NewFakeClock(), Handlers{})
	c.Close()

	assert.ErrorIs(t, c.Connect(), ErrClosed)
}

// echoServer upgrades one connection and replays every frame it receives.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	received := make(chan protocol.Message, 4)
	opened := make(chan struct{}, 1)
	c := NewClient(wsURL(srv), clockwork.NewRealClock(), Handlers{
		OnOpen:    func() { opened <- struct{}{} },
		OnMessage: func(msg protocol.Message) { received <- msg },
	})
	defer c.Close()

	require.NoError(t, c.Connect())
	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("OnOpen never fired")
	}
	assert.True(t, c.Connected())

	require.NoError(t, c.Send(protocol.NewChat("ping")))
	select {
	case msg := <-received:
		assert.Equal(t, protocol.TypeChat, msg.Type)
		assert.Equal(t, "ping", msg.Chat().Text)
	case <-time.After(2 * time.Second):
		t.Fatal("echo never arrived")
	}
}

func TestGracefulCloseNotifiesOnClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	closed := make(chan struct{}, 2)
	c := NewClient(wsURL(srv), clockwork.NewRealClock(), Handlers{
		OnClose: func() { closed <- struct{}{} },
	})
	require.NoError(t, c.Connect())

	c.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired on graceful close")
	}
	assert.False(t, c.Connected())
}

func TestKickedCloseNotifiesOnClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	closed := make(chan struct{}, 2)
	c := NewClient(wsURL(srv), clockwork.NewRealClock(), Handlers{
		OnClose: func() { closed <- struct{}{} },
	})
	require.NoError(t, c.Connect())

	c.KickedClose()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired on kick close")
	}
	assert.ErrorIs(t, c.Connect(), ErrKicked)
}

func TestUnexpectedCloseSchedulesReconnect(t *testing.T) {
	srv := echoServer(t)

	clock := clockwork.NewFakeClock()
	closed := make(chan struct{}, 4)
	c := NewClient(wsURL(srv), clock, Handlers{
		OnClose: func() { closed <- struct{}{} },
	})
	defer c.Close()

	require.NoError(t, c.Connect())

	// Kill the server; the read loop should observe the close and arm the
	// first backoff timer on the injected clock.
	srv.Close()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired")
	}

	// The reconnect attempt is waiting on the fake clock.
	clock.BlockUntil(1)
	assert.False(t, c.Connected())
	assert.False(t, c.Exhausted())
}
