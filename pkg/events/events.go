// Package events publishes boost lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// BoostEvent is the payload published for every boost state change.
// Routing keys are "boost.<type>", e.g. boost.applied or boost.scheduled_failed.
type BoostEvent struct {
	Type         string `json:"type"`
	BoostID      string `json:"boostId"`
	UserID       uint   `json:"userId"`
	ServerID     string `json:"serverId"`
	BoostType    string `json:"boostType"`
	RefundAmount int64  `json:"refundAmount,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

func (e BoostEvent) RoutingKey() string {
	return "boost." + e.Type
}

type Publisher interface {
	PublishBoostEvent(ctx context.Context, event BoostEvent) error
	Close()
}

// NoopPublisher is used when AMQP_URL is unset or RabbitMQ is unreachable at startup.
type NoopPublisher struct {
	Logger *slog.Logger
}

func (p *NoopPublisher) PublishBoostEvent(ctx context.Context, event BoostEvent) error {
	if p.Logger != nil {
		p.Logger.Debug("event publish skipped", "routing_key", event.RoutingKey(), "boost_id", event.BoostID)
	}
	return nil
}

func (p *NoopPublisher) Close() {}

// AMQPPublisher writes events to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewAMQPPublisher(amqpURL, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	clean, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.DialConfig(clean, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	p := &AMQPPublisher{conn: conn, exchange: exchange, logger: logger}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

func (p *AMQPPublisher) PublishBoostEvent(ctx context.Context, event BoostEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, event.RoutingKey(), false, false, msg)
	if err == nil {
		return nil
	}
	p.logger.Warn("publish failed; reopening channel", "routing_key", event.RoutingKey(), "error", err)
	if chErr := p.openChannel(); chErr != nil {
		return errors.Join(err, chErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, event.RoutingKey(), false, false, msg)
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Connect returns an AMQP publisher, or a NoopPublisher when url is empty or
// the broker cannot be reached.
func Connect(amqpURL, exchange string, logger *slog.Logger) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		return &NoopPublisher{Logger: logger}
	}
	p, err := NewAMQPPublisher(amqpURL, exchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, boost events disabled", "error", err)
		return &NoopPublisher{Logger: logger}
	}
	return p
}
