// Package events publishes domain notifications to a RabbitMQ exchange.
// The publisher is optional: a nil *AMQPPublisher is safe to call, so the
// app can run without a broker configured.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingChapterPublished     = "chapter.published"
	RoutingSubscriptionCreated  = "subscription.created"
	RoutingSubscriptionCanceled = "subscription.canceled"
)

// ChapterPublished is emitted after a chapter goes out and its payout batch ran.
type ChapterPublished struct {
	BookID       int64 `json:"bookId"`
	ChapterID    int64 `json:"chapterId"`
	ChargedCount int   `json:"chargedCount"`
}

// SubscriptionChanged is emitted when a reader subscribes or unsubscribes.
type SubscriptionChanged struct {
	BookID    int64 `json:"bookId"`
	ProfileID int64 `json:"profileId"`
}

// AMQPPublisher writes JSON events to a topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = "bookie.events"
	}
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn = conn
	p.channel = channel
	return nil
}

// PublishChapterPublished emits a chapter.published event. No-op on a nil publisher.
func (p *AMQPPublisher) PublishChapterPublished(ctx context.Context, event ChapterPublished) error {
	return p.publish(ctx, RoutingChapterPublished, event)
}

// PublishSubscriptionCreated emits a subscription.created event. No-op on a nil publisher.
func (p *AMQPPublisher) PublishSubscriptionCreated(ctx context.Context, event SubscriptionChanged) error {
	return p.publish(ctx, RoutingSubscriptionCreated, event)
}

// PublishSubscriptionCanceled emits a subscription.canceled event. No-op on a nil publisher.
func (p *AMQPPublisher) PublishSubscriptionCanceled(ctx context.Context, event SubscriptionChanged) error {
	return p.publish(ctx, RoutingSubscriptionCanceled, event)
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
}

// Close releases the channel and connection. Safe on a nil publisher.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil && first == nil {
			first = err
		}
		p.channel = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && first == nil {
			first = err
		}
		p.conn = nil
	}
	return first
}
