// ABOUTME: Tests for the websocket Connection write side
// ABOUTME: Covers ordered delivery, closed-connection sends and the full-buffer disconnect

package realtime

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConnectionPair returns a server-side Connection (not started) and the client socket.
func newConnectionPair(t *testing.T, opts ConnectionOptions) (*Connection, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- ws
	}))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { client.Close() })

	ws := <-serverSide
	conn := NewConnection("u1", ws, opts)
	t.Cleanup(func() { conn.Close(websocket.CloseNormalClosure, "") })
	return conn, client
}

func TestConnection_DeliversInOrder(t *testing.T) {
	conn, client := newConnectionPair(t, ConnectionOptions{})
	conn.Start()

	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, conn.Send([]byte(m)))
	}

	for _, want := range []string{"one", "two", "three"} {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
	assert.NotEmpty(t, conn.ID())
	assert.Equal(t, "u1", conn.UserID())
}

func TestConnection_SendAfterClose(t *testing.T) {
	conn, _ := newConnectionPair(t, ConnectionOptions{})
	conn.Start()

	conn.Close(websocket.CloseNormalClosure, "bye")
	conn.Close(websocket.CloseNormalClosure, "again")

	assert.ErrorIs(t, conn.Send([]byte("late")), ErrConnectionClosed)
	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestConnection_FullBufferCloses(t *testing.T) {
	// Not started, so nothing drains the queue
	conn, client := newConnectionPair(t, ConnectionOptions{SendBuffer: 2})

	require.NoError(t, conn.Send([]byte("a")))
	require.NoError(t, conn.Send([]byte("b")))
	assert.ErrorIs(t, conn.Send([]byte("c")), ErrSendBufferFull)
	assert.ErrorIs(t, conn.Send([]byte("d")), ErrConnectionClosed)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestConnection_FullBufferDoesNotBlockOnStalledWriter(t *testing.T) {
	conn, _ := newConnectionPair(t, ConnectionOptions{SendBuffer: 1, WriteWait: 3 * time.Second})
	conn.Start()

	// The client never reads, so the writer stalls once the socket buffers fill
	payload := bytes.Repeat([]byte("x"), 4<<20)
	var sawFull bool
	for i := 0; i < 64; i++ {
		start := time.Now()
		err := conn.Send(payload)
		elapsed := time.Since(start)
		require.Less(t, elapsed, 500*time.Millisecond, "send %d blocked for %v", i, elapsed)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrSendBufferFull) {
			sawFull = true
			continue
		}
		require.ErrorIs(t, err, ErrConnectionClosed)
		break
	}
	assert.True(t, sawFull)

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed")
	}
}
