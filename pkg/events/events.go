package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/clubsync/presence/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event types and subjects
const (
	CodeGenerated  = "presence.code.generated"
	ScanAccepted   = "presence.scan.accepted"
	ScanRejected   = "presence.scan.rejected"
	IntegrityAlert = "presence.integrity.alert"
	HistoryCleared = "presence.history.cleared"
)

// Event payloads
type CodeGeneratedEvent struct {
	SubjectID string    `json:"subject_id"`
	GroupID   string    `json:"group_id"`
	IssuerID  string    `json:"issuer_id,omitempty"`
	Kind      string    `json:"kind"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ScanResultEvent struct {
	SubjectID     string    `json:"subject_id,omitempty"`
	GroupID       string    `json:"group_id,omitempty"`
	Accepted      bool      `json:"accepted"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
	ScannedAt     time.Time `json:"scanned_at"`
}

type IntegrityAlertEvent struct {
	SubjectID    string    `json:"subject_id"`
	GroupID      string    `json:"group_id"`
	IntegrityTag string    `json:"integrity_tag"`
	DetectedAt   time.Time `json:"detected_at"`
}
