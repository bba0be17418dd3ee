// ABOUTME: Fan-out of encoded events to a snapshot of conversation members
// ABOUTME: Per-connection failures are isolated, reported and never retried

package chat

import (
	"context"
	"log/slog"
)

// Delivery is one encoded event bound for a membership snapshot.
type Delivery struct {
	ConversationID string
	MessageID      int64
	Payload        []byte
	Members        []Conn
}

// DeliveryReport summarizes a fan-out.
type DeliveryReport struct {
	Delivered int
	Failed    []*TransportError
}

// Broadcaster delivers a payload to every member of a snapshot.
type Broadcaster interface {
	DeliverToGroup(ctx context.Context, d Delivery) DeliveryReport
}

// FanOut is the in-process Broadcaster. It hands the payload to each
// connection's send queue; a failing connection does not affect the others.
type FanOut struct {
	logger *slog.Logger
}

// NewFanOut creates a broadcaster. Pass nil logger for default.
func NewFanOut(logger *slog.Logger) *FanOut {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanOut{logger: logger.With("component", "broadcaster")}
}

// DeliverToGroup sends d.Payload to every connection in d.Members.
func (f *FanOut) DeliverToGroup(ctx context.Context, d Delivery) DeliveryReport {
	var report DeliveryReport

	for _, conn := range d.Members {
		if err := conn.Send(d.Payload); err != nil {
			terr := &TransportError{ConnID: conn.ID(), UserID: conn.UserID(), Err: err}
			report.Failed = append(report.Failed, terr)
			f.logger.Warn("delivery failed",
				"conversation_id", d.ConversationID,
				"message_id", d.MessageID,
				"conn_id", conn.ID(),
				"error", err)
			continue
		}
		report.Delivered++
	}

	return report
}
