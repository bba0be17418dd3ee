// ABOUTME: HTTP API handlers for health and conversation history
// ABOUTME: History is readable only by the conversation's participants

package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/2389/pairchat/internal/auth"
	"github.com/2389/pairchat/internal/chat"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string             `json:"status"`
	Store       string             `json:"store"`
	Connections int                `json:"connections"`
	Registry    chat.RegistryStats `json:"registry"`
	Relay       string             `json:"relay,omitempty"`
}

// handleHealth reports store reachability and live connection counts.
// Returns 503 if the store cannot be reached.
func (g *Gateway) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "ok",
		Store:       "ok",
		Connections: g.realtime.ActiveConnections(),
		Registry:    g.hub.Registry().Stats(),
	}
	if g.relay != nil {
		resp.Relay = g.relay.Node()
	}

	status := http.StatusOK
	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("health check: store unreachable", "error", err)
		resp.Status = "degraded"
		resp.Store = "unreachable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

// historyResponse is the body of GET /api/conversations/:id/messages.
type historyResponse struct {
	Messages []chat.MessageView `json:"messages"`
	NextID   int64              `json:"nextAfterId"`
}

// handleListMessages returns messages after ?after_id= in ascending order.
// Unknown conversations and non-participants get the same 404.
func (g *Gateway) handleListMessages(c *gin.Context) {
	identity := auth.FromContext(c.Request.Context())
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	afterID, err := parseQueryInt(c, "after_id", 0)
	if err != nil || afterID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after_id must be a non-negative integer"})
		return
	}
	limit, err := parseQueryInt(c, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	ctx := c.Request.Context()
	conversationID := c.Param("id")

	membership, err := g.guard.CheckMembership(ctx, identity.UserID, conversationID)
	if err != nil {
		g.logger.Error("history membership check failed", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": chat.ErrorCode(err)})
		return
	}
	if membership != chat.MembershipMember {
		c.JSON(http.StatusNotFound, gin.H{"error": chat.CodeConversationNotFound})
		return
	}

	messages, err := g.store.ListMessages(ctx, conversationID, afterID, int(limit))
	if err != nil {
		g.logger.Error("listing messages failed", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": chat.CodePersistence})
		return
	}

	resp := historyResponse{
		Messages: make([]chat.MessageView, 0, len(messages)),
		NextID:   afterID,
	}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, chat.NewMessageView(msg))
		resp.NextID = msg.ID
	}
	c.JSON(http.StatusOK, resp)
}

func parseQueryInt(c *gin.Context, name string, def int64) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
