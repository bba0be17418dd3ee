// ABOUTME: Cross-node fan-out of message events over Redis pub/sub
// ABOUTME: Delivers locally first, then queues a publish so other nodes reach their own members

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/2389/pairchat/internal/chat"
	"github.com/2389/pairchat/internal/dedupe"
)

const (
	// publishTimeout bounds a single PUBLISH after the message is already stored.
	publishTimeout = 2 * time.Second

	// dedupeCapacity bounds the number of remembered relay keys.
	dedupeCapacity = 100000

	// outboxSize bounds envelopes waiting to be published.
	outboxSize = 4096
)

// MemberSource resolves a conversation's connections on this node.
type MemberSource interface {
	MembersOf(conversationID string) []chat.Conn
}

// envelope is what travels between nodes.
type envelope struct {
	Node           string          `json:"node"`
	ConversationID string          `json:"conversationId"`
	MessageID      int64           `json:"messageId"`
	Payload        json.RawMessage `json:"payload"`
}

// outbound is an encoded envelope waiting in the publish queue.
type outbound struct {
	conversationID string
	messageID      int64
	msg            []byte
}

// Relay is a chat.Broadcaster that also reaches members connected to other
// nodes. Each node runs one Relay with a distinct node id.
type Relay struct {
	client  *redis.Client
	prefix  string
	node    string
	local   chat.Broadcaster
	members MemberSource
	seen    *dedupe.Cache
	logger  *slog.Logger

	publish func(ctx context.Context, channel string, msg []byte) error

	outbox    chan outbound
	stop      context.CancelFunc
	stopped   chan struct{}
	closeOnce sync.Once
}

// Dial connects to Redis at url (redis://...) and verifies it with PING.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// New creates a relay. local performs delivery to this node's connections and
// members resolves them for events arriving from other nodes. Pass nil logger
// for default.
func New(client *redis.Client, prefix string, local chat.Broadcaster, members MemberSource, dedupeTTL time.Duration, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	node := uuid.New().String()
	r := &Relay{
		client:  client,
		prefix:  prefix,
		node:    node,
		local:   local,
		members: members,
		seen:    dedupe.New(dedupeTTL, dedupeCapacity),
		logger:  logger.With("component", "relay", "node", node),
		outbox:  make(chan outbound, outboxSize),
		stopped: make(chan struct{}),
	}
	r.publish = func(ctx context.Context, channel string, msg []byte) error {
		return r.client.Publish(ctx, channel, msg).Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	go r.publishLoop(ctx)
	return r
}

// Node returns this relay's node id.
func (r *Relay) Node() string {
	return r.node
}

func (r *Relay) channel(conversationID string) string {
	return r.prefix + conversationID
}

func deliveryKey(conversationID string, messageID int64) string {
	return conversationID + ":" + strconv.FormatInt(messageID, 10)
}

// DeliverToGroup delivers d to local members, then queues it for other
// nodes. It never waits on Redis. A full queue or a failed publish is logged;
// local delivery is unaffected.
func (r *Relay) DeliverToGroup(ctx context.Context, d chat.Delivery) chat.DeliveryReport {
	r.seen.Admit(deliveryKey(d.ConversationID, d.MessageID))
	report := r.local.DeliverToGroup(ctx, d)

	msg, err := json.Marshal(envelope{
		Node:           r.node,
		ConversationID: d.ConversationID,
		MessageID:      d.MessageID,
		Payload:        d.Payload,
	})
	if err != nil {
		r.logger.Error("failed to encode relay envelope", "message_id", d.MessageID, "error", err)
		return report
	}

	select {
	case r.outbox <- outbound{conversationID: d.ConversationID, messageID: d.MessageID, msg: msg}:
	default:
		r.logger.Warn("relay outbox full, dropping publish",
			"conversation_id", d.ConversationID,
			"message_id", d.MessageID)
	}

	return report
}

// publishLoop publishes queued envelopes one at a time. Callers enqueue under
// the conversation lock, so each conversation's envelopes leave this node in
// message id order.
func (r *Relay) publishLoop(ctx context.Context) {
	defer close(r.stopped)
	for {
		select {
		case <-ctx.Done():
			if n := len(r.outbox); n > 0 {
				r.logger.Warn("relay closed with unpublished messages", "count", n)
			}
			return
		case out := <-r.outbox:
			r.publishOne(ctx, out)
		}
	}
}

func (r *Relay) publishOne(ctx context.Context, out outbound) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.publish(pubCtx, r.channel(out.conversationID), out.msg); err != nil {
		r.logger.Warn("failed to publish to other nodes",
			"conversation_id", out.conversationID,
			"message_id", out.messageID,
			"error", err)
	}
}

// Run subscribes to every conversation channel and delivers remote events to
// local members until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s*: %w", r.prefix, err)
	}
	r.logger.Info("relay subscribed", "pattern", r.prefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

// handle delivers one relayed envelope to this node's members of the
// conversation. Envelopes from this node and repeats are dropped.
func (r *Relay) handle(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Warn("dropping malformed relay envelope", "error", err)
		return
	}
	if env.Node == r.node {
		return
	}
	if !r.seen.Admit(deliveryKey(env.ConversationID, env.MessageID)) {
		r.logger.Debug("dropping duplicate relay envelope",
			"conversation_id", env.ConversationID,
			"message_id", env.MessageID)
		return
	}

	members := r.members.MembersOf(env.ConversationID)
	if len(members) == 0 {
		return
	}

	report := r.local.DeliverToGroup(ctx, chat.Delivery{
		ConversationID: env.ConversationID,
		MessageID:      env.MessageID,
		Payload:        env.Payload,
		Members:        members,
	})
	r.logger.Debug("relayed message delivered",
		"conversation_id", env.ConversationID,
		"message_id", env.MessageID,
		"origin", env.Node,
		"delivered", report.Delivered,
		"failed", len(report.Failed))
}

// Close stops the publisher and releases the dedupe sweeper and the Redis
// client. Safe to call repeatedly.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.stop()
		<-r.stopped
		r.seen.Close()
		if r.client != nil {
			err = r.client.Close()
		}
	})
	return err
}

var _ chat.Broadcaster = (*Relay)(nil)
