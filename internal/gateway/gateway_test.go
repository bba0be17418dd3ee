// ABOUTME: Tests for Gateway wiring, lifecycle and HTTP endpoints
// ABOUTME: Runs a real SQLite-backed gateway behind httptest with websocket clients

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pairchat/internal/auth"
	"github.com/2389/pairchat/internal/chat"
	"github.com/2389/pairchat/internal/config"
	"github.com/2389/pairchat/internal/store"
)

const testSecret = "gateway-test-secret"

// testConfig creates a minimal config with a temporary SQLite database.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "pairchat.db")
	cfg.Auth.JWTSecret = testSecret
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw, err := New(testConfig(t), testLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})

	require.NoError(t, gw.Store().CreateConversation(context.Background(), &store.Conversation{
		ID:           "conv-1",
		ParticipantA: "alice",
		ParticipantB: "bob",
	}))
	return gw, srv
}

func token(t *testing.T, userID string) string {
	t.Helper()
	v, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)
	tok, err := v.Generate(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func getJSON(t *testing.T, url, bearer string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestGatewayNew(t *testing.T) {
	gw, err := New(testConfig(t), testLogger())
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	assert.NotNil(t, gw.Store())
	assert.NotNil(t, gw.Hub())
	assert.NotNil(t, gw.Handler())
	assert.Nil(t, gw.relay)
}

func TestGatewayNew_Errors(t *testing.T) {
	t.Run("empty secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.JWTSecret = ""
		_, err := New(cfg, testLogger())
		assert.ErrorIs(t, err, auth.ErrEmptySecret)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Driver = "mysql"
		_, err := New(cfg, testLogger())
		assert.ErrorContains(t, err, "unknown database driver")
	})
}

func TestOpenStore_EnvOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "override.db")
	t.Setenv("PAIRCHAT_DB_PATH", override)

	s, err := OpenStore(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, override)
}

func TestGatewayRunAndShutdown(t *testing.T) {
	gw, err := New(testConfig(t), testLogger())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Serve(ctx, ln)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down in time")
	}

	// Shutdown after Run is a no-op
	assert.NoError(t, gw.Shutdown(context.Background()))
}

func TestHealth(t *testing.T) {
	_, srv := newTestGateway(t)

	var health HealthResponse
	status := getJSON(t, srv.URL+"/health", "", &health)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Store)
	assert.Equal(t, 0, health.Connections)
	assert.Equal(t, chat.RegistryStats{}, health.Registry)
	assert.Empty(t, health.Relay)
}

func TestHealth_StoreUnreachable(t *testing.T) {
	gw, srv := newTestGateway(t)
	require.NoError(t, gw.Store().Close())

	var health HealthResponse
	status := getJSON(t, srv.URL+"/health", "", &health)

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unreachable", health.Store)
}

func TestWebsocketRequiresToken(t *testing.T) {
	_, srv := newTestGateway(t)

	status := getJSON(t, srv.URL+"/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = getJSON(t, srv.URL+"/ws", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func appendMessages(t *testing.T, s store.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.AppendMessage(context.Background(), &store.Message{
			ConversationID: "conv-1",
			SenderID:       "alice",
			Content:        "message",
			Type:           store.MessageTypeText,
		}))
	}
}

func TestListMessages(t *testing.T) {
	gw, srv := newTestGateway(t)
	appendMessages(t, gw.Store(), 3)
	url := srv.URL + "/api/conversations/conv-1/messages"

	var page historyResponse
	status := getJSON(t, url+"?limit=2", token(t, "bob"), &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "conv-1", page.Messages[0].ConversationID)
	assert.Equal(t, "text", page.Messages[0].MessageType)
	assert.Less(t, page.Messages[0].ID, page.Messages[1].ID)
	assert.Equal(t, page.Messages[1].ID, page.NextID)

	var rest historyResponse
	status = getJSON(t, url+"?after_id="+strconv.FormatInt(page.NextID, 10), token(t, "alice"), &rest)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, rest.Messages, 1)
	assert.Greater(t, rest.Messages[0].ID, page.NextID)
}

func TestListMessages_Rejections(t *testing.T) {
	gw, srv := newTestGateway(t)
	appendMessages(t, gw.Store(), 1)

	tests := []struct {
		name   string
		path   string
		user   string
		status int
	}{
		{"no token", "/api/conversations/conv-1/messages", "", http.StatusUnauthorized},
		{"not a participant", "/api/conversations/conv-1/messages", "mallory", http.StatusNotFound},
		{"unknown conversation", "/api/conversations/nope/messages", "alice", http.StatusNotFound},
		{"bad after_id", "/api/conversations/conv-1/messages?after_id=x", "alice", http.StatusBadRequest},
		{"negative after_id", "/api/conversations/conv-1/messages?after_id=-1", "alice", http.StatusBadRequest},
		{"zero limit", "/api/conversations/conv-1/messages?limit=0", "alice", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bearer := ""
			if tt.user != "" {
				bearer = token(t, tt.user)
			}
			var body map[string]any
			status := getJSON(t, srv.URL+tt.path, bearer, &body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListMessages_NonParticipantMatchesUnknown(t *testing.T) {
	_, srv := newTestGateway(t)

	var a, b map[string]any
	getJSON(t, srv.URL+"/api/conversations/conv-1/messages", token(t, "mallory"), &a)
	getJSON(t, srv.URL+"/api/conversations/missing/messages", token(t, "mallory"), &b)
	assert.Equal(t, a, b)
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + auth.AccessTokenParam + "=" + token(t, userID)
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readFrame reads frames until one of the given type arrives.
func readFrame(t *testing.T, ws *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var frame map[string]any
		require.NoError(t, ws.ReadJSON(&frame))
		if frame["type"] == frameType {
			return frame
		}
	}
}

func TestWebsocketConversation(t *testing.T) {
	gw, srv := newTestGateway(t)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	readFrame(t, alice, "connected")
	readFrame(t, bob, "connected")

	for _, ws := range []*websocket.Conn{alice, bob} {
		require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "conversationId": "conv-1"}))
		readFrame(t, ws, "joined")
	}

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type":           "send",
		"requestId":      "r1",
		"conversationId": "conv-1",
		"content":        "hi bob",
	}))

	sent := readFrame(t, alice, "sent")
	assert.Equal(t, "r1", sent["requestId"])

	event := readFrame(t, bob, chat.EventReceiveMessage)
	assert.EqualValues(t, chat.EventVersion, event["version"])
	msg := event["message"].(map[string]any)
	assert.Equal(t, "hi bob", msg["content"])
	assert.Equal(t, "alice", msg["senderId"])
	assert.Nil(t, msg["mediaUrl"])

	var health HealthResponse
	getJSON(t, srv.URL+"/health", "", &health)
	assert.Equal(t, 2, health.Connections)
	assert.Equal(t, 1, health.Registry.Conversations)
	assert.Equal(t, 2, health.Registry.Memberships)

	stored, err := gw.Store().ListMessages(context.Background(), "conv-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.EqualValues(t, stored[0].ID, msg["id"])
}
