// Package events publishes domain events to a RabbitMQ topic exchange.
// When no broker is configured the package falls back to a no-op publisher.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"readinghub/backend/internal/lib/sl"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Routing keys.
const (
	UserRegistered        = "user.registered"
	ClubMemberJoined      = "club.member_joined"
	ClubMemberLeft        = "club.member_left"
	FriendRequestSent     = "friend.request_sent"
	FriendRequestAccepted = "friend.request_accepted"
	MessageSent           = "message.sent"
	RatingUpserted        = "rating.upserted"
)

// Event is the JSON body of every published message.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }

// Channel is the part of *amqp.Channel used for publishing.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	conn     *amqp.Connection
	ch       Channel
	exchange string
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string) (*AMQPPublisher, error) {
	const op = "events.Dial"
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p := NewAMQPPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

// NewAMQPPublisher wraps an already open channel.
func NewAMQPPublisher(ch Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

func (p *AMQPPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	const op = "events.Publish"
	event := Event{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         routingKey,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var (
	mu      sync.RWMutex
	current Publisher = NopPublisher{}
)

// SetPublisher replaces the process-wide publisher. A nil p restores the no-op one.
func SetPublisher(p Publisher) {
	mu.Lock()
	defer mu.Unlock()
	if p == nil {
		p = NopPublisher{}
	}
	current = p
}

// Emit publishes through the process-wide publisher. Failures are logged, not returned.
func Emit(ctx context.Context, routingKey string, payload any) {
	mu.RLock()
	p := current
	mu.RUnlock()

	if err := p.Publish(ctx, routingKey, payload); err != nil {
		slog.Default().Warn("event publish failed", slog.String("routing_key", routingKey), sl.Err(err))
	}
}
