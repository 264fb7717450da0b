package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	Connection         *Connection
	Exchange           string
	UpdatedRoutingKey  string
	RejectedRoutingKey string
	Logger             *zap.Logger
}

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	mu                 sync.Mutex
	channel            *amqp.Channel
	exchange           string
	updatedRoutingKey  string
	rejectedRoutingKey string
	logger             *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := declareTopicExchange(ch, cfg.Exchange); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		channel:            ch,
		exchange:           cfg.Exchange,
		updatedRoutingKey:  cfg.UpdatedRoutingKey,
		rejectedRoutingKey: cfg.RejectedRoutingKey,
		logger:             cfg.Logger,
	}, nil
}

// RunningHoursEvent is published for every accepted running-hours update
type RunningHoursEvent struct {
	RequestID        string  `json:"request_id"`
	ComponentID      string  `json:"component_id"`
	AuditID          string  `json:"audit_id"`
	PreviousRH       float64 `json:"previous_rh"`
	CumulativeRH     float64 `json:"cumulative_rh"`
	MeterReplaced    bool    `json:"meter_replaced"`
	Source           string  `json:"source"`
	UserID           string  `json:"user_id"`
	DateUpdatedLocal string  `json:"date_updated_local"`
	DateUpdatedTZ    string  `json:"date_updated_tz"`
	AnomalyReason    *string `json:"anomaly_reason"`
}

// RejectedEvent is published for a command or bulk row that failed validation
type RejectedEvent struct {
	RequestID   string `json:"request_id"`
	UserID      string `json:"user_id"`
	ComponentID string `json:"component_id,omitempty"`
	Row         *int   `json:"row,omitempty"`
	Kind        string `json:"kind"`
	Field       string `json:"field,omitempty"`
	Reason      string `json:"reason"`
}

// PublishUpdated publishes an accepted update on the updated routing key
func (p *Publisher) PublishUpdated(ctx context.Context, event RunningHoursEvent) error {
	if err := p.publish(ctx, p.updatedRoutingKey, event); err != nil {
		return err
	}
	p.logger.Debug("published running hours event",
		zap.String("routing_key", p.updatedRoutingKey),
		zap.String("component_id", event.ComponentID),
		zap.String("audit_id", event.AuditID),
	)
	return nil
}

// PublishRejected publishes a validation rejection on the rejected routing key
func (p *Publisher) PublishRejected(ctx context.Context, event RejectedEvent) error {
	if err := p.publish(ctx, p.rejectedRoutingKey, event); err != nil {
		return err
	}
	p.logger.Debug("published rejection event",
		zap.String("routing_key", p.rejectedRoutingKey),
		zap.String("component_id", event.ComponentID),
		zap.String("kind", event.Kind),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
