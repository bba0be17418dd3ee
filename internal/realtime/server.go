// ABOUTME: Gin websocket handler driving the chat hub from client frames
// ABOUTME: One read loop per connection; replies carry the client's requestId

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/2389/pairchat/internal/auth"
	"github.com/2389/pairchat/internal/chat"
)

// Options configures the websocket server.
type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PingPeriod     time.Duration
	ReadTimeout    time.Duration
	MaxFrameBytes  int64
	RequestTimeout time.Duration
	AllowedOrigins []string // empty means same-origin only; "*" allows any
}

func (o *Options) applyDefaults() {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.ReadTimeout {
		o.PingPeriod = o.ReadTimeout * 9 / 10
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 64 << 10
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
}

// Server upgrades authenticated requests to websockets and feeds frames to the hub.
type Server struct {
	hub      *chat.Hub
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]*Connection
}

// NewServer creates a websocket server. Pass nil logger for default.
func NewServer(hub *chat.Hub, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()

	s := &Server{
		hub:    hub,
		opts:   opts,
		logger: logger.With("component", "realtime"),
		conns:  make(map[string]*Connection),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return s
}

// originChecker returns nil (gorilla's same-origin default) when no origins are configured.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ActiveConnections returns the number of open websocket sessions.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseAll closes every open connection, used on shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (s *Server) track(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.ID()] = c
}

func (s *Server) untrack(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c.ID())
}

// Handle upgrades the request and processes frames until the client disconnects.
// It must run behind auth.Middleware.
func (s *Server) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := auth.FromContext(c.Request.Context())
		if identity == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response
			s.logger.Debug("websocket upgrade failed", "error", err)
			return
		}

		conn := NewConnection(identity.UserID, ws, ConnectionOptions{
			SendBuffer: s.opts.SendBuffer,
			WriteWait:  s.opts.WriteWait,
			PingPeriod: s.opts.PingPeriod,
		})
		conn.Start()
		s.track(conn)
		s.hub.OnConnect(conn)

		// Disconnect runs after the read loop, so no join can land after LeaveAll
		defer func() {
			s.hub.OnDisconnect(conn)
			s.untrack(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(s.opts.MaxFrameBytes)
		_ = ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		})

		_ = conn.Send(encodeFrame(connectedFrame{
			Type:         FrameConnected,
			ConnectionID: conn.ID(),
			UserID:       conn.UserID(),
		}))

		ctx := c.Request.Context()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Debug("websocket read ended", "conn_id", conn.ID(), "error", err)
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))

			s.dispatch(ctx, conn, data)
		}
	}
}

// dispatch handles one inbound frame.
func (s *Server) dispatch(ctx context.Context, conn *Connection, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.replyError(conn, "", CodeBadRequest, "invalid frame")
		return
	}

	switch frame.Type {
	case FrameJoin, FrameLeave, FrameSend:
		if frame.ConversationID == "" {
			s.replyError(conn, frame.RequestID, CodeBadRequest, "conversationId is required")
			return
		}
	default:
		s.replyError(conn, frame.RequestID, CodeUnsupportedType, "unknown frame type")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	switch frame.Type {
	case FrameJoin:
		s.handleJoin(ctx, conn, frame)
	case FrameLeave:
		s.hub.OnLeave(conn, frame.ConversationID)
		_ = conn.Send(encodeFrame(ackFrame{Type: FrameLeft, RequestID: frame.RequestID, ConversationID: frame.ConversationID}))
	case FrameSend:
		s.handleSend(ctx, conn, frame)
	}
}

func (s *Server) handleJoin(ctx context.Context, conn *Connection, frame inboundFrame) {
	err := s.hub.OnJoin(ctx, conn, frame.ConversationID)
	switch {
	case err == nil:
		_ = conn.Send(encodeFrame(ackFrame{Type: FrameJoined, RequestID: frame.RequestID, ConversationID: frame.ConversationID}))
	case errors.Is(err, chat.ErrJoinRejected):
		_ = conn.Send(encodeFrame(ackFrame{Type: FrameJoinRejected, RequestID: frame.RequestID, ConversationID: frame.ConversationID}))
	default:
		s.logger.Error("join failed", "conn_id", conn.ID(), "conversation_id", frame.ConversationID, "error", err)
		code := chat.ErrorCode(err)
		s.replyError(conn, frame.RequestID, code, errorMessages[code])
	}
}

func (s *Server) handleSend(ctx context.Context, conn *Connection, frame inboundFrame) {
	msg, err := s.hub.OnSend(ctx, conn, chat.SendInput{
		ConversationID: frame.ConversationID,
		Content:        frame.Content,
		Type:           frame.MessageType,
		MediaURL:       frame.MediaURL,
	})
	if err != nil {
		code := chat.ErrorCode(err)
		s.logger.Debug("send rejected", "conn_id", conn.ID(), "conversation_id", frame.ConversationID, "code", code, "error", err)
		s.replyError(conn, frame.RequestID, code, errorMessages[code])
		return
	}

	_ = conn.Send(encodeFrame(sentFrame{
		Type:      FrameSent,
		RequestID: frame.RequestID,
		Message:   chat.NewMessageView(msg),
	}))
}

func (s *Server) replyError(conn *Connection, requestID, code, message string) {
	_ = conn.Send(encodeFrame(errorFrame{
		Type:      FrameError,
		RequestID: requestID,
		Code:      code,
		Error:     message,
	}))
}
