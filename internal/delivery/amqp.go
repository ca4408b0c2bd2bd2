package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/seantiz/simcbot/internal/model"
)

// AMQPConfig holds the connection settings for the gateway exchange.
type AMQPConfig struct {
	URL               string
	Exchange          string
	ExchangeType      string
	RoutingKey        string
	DialAttempts      int
	DialInterval      time.Duration
	Heartbeat         time.Duration
	PublishRetries    int
	PublishRetryDelay time.Duration
}

func (c *AMQPConfig) withDefaults() AMQPConfig {
	out := *c
	if out.ExchangeType == "" {
		out.ExchangeType = amqp.ExchangeDirect
	}
	if out.DialAttempts <= 0 {
		out.DialAttempts = 5
	}
	if out.DialInterval <= 0 {
		out.DialInterval = 2 * time.Second
	}
	if out.Heartbeat <= 0 {
		out.Heartbeat = 10 * time.Second
	}
	if out.PublishRetries < 0 {
		out.PublishRetries = 0
	}
	if out.PublishRetryDelay <= 0 {
		out.PublishRetryDelay = 100 * time.Millisecond
	}
	return out
}

// publisher is the subset of *amqp.Channel used to publish.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes message envelopes to an exchange consumed by the
// chat gateway.
type AMQPPublisher struct {
	cfg    AMQPConfig
	ch     publisher
	closer func() error
	logger *slog.Logger
}

// Compile-time interface satisfaction check.
var _ Deliverer = (*AMQPPublisher)(nil)

// DialAMQP connects to the broker, retrying up to cfg.DialAttempts times, and
// declares the exchange.
func DialAMQP(ctx context.Context, cfg AMQPConfig, logger *slog.Logger) (*AMQPPublisher, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	if cfg.Exchange == "" {
		return nil, errors.New("amqp exchange is required")
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= cfg.DialAttempts; attempt++ {
		conn, err = amqp.DialConfig(cfg.URL, amqp.Config{Heartbeat: cfg.Heartbeat, Locale: "en_US"})
		if err == nil {
			break
		}
		logger.Warn("amqp dial failed",
			"attempt", attempt,
			"max_attempts", cfg.DialAttempts,
			"error", err,
		)
		if attempt == cfg.DialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.DialInterval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to amqp after %d attempts: %w", cfg.DialAttempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		cfg.ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	logger.Info("amqp publisher ready",
		"exchange", cfg.Exchange,
		"routing_key", cfg.RoutingKey,
	)

	return &AMQPPublisher{
		cfg: cfg,
		ch:  ch,
		closer: func() error {
			ch.Close()
			return conn.Close()
		},
		logger: logger,
	}, nil
}

func (p *AMQPPublisher) DeliverReport(ctx context.Context, job *model.Job, path string) error {
	msg, err := reportMessage(job, path, p.logger)
	if err != nil {
		observe(TypeReport, err)
		return err
	}
	err = p.publish(ctx, msg)
	observe(TypeReport, err)
	return err
}

func (p *AMQPPublisher) DeliverText(ctx context.Context, job *model.Job, text string) error {
	err := p.publish(ctx, textMessage(job, text))
	observe(TypeText, err)
	return err
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// publish sends msg, retrying with exponential backoff.
func (p *AMQPPublisher) publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	delay := p.cfg.PublishRetryDelay
	var lastErr error
	for attempt := 0; attempt <= p.cfg.PublishRetries; attempt++ {
		lastErr = p.ch.PublishWithContext(ctx,
			p.cfg.Exchange,
			p.cfg.RoutingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.JobID,
				Type:         msg.Type,
				Timestamp:    msg.CreatedAt,
				Body:         body,
			},
		)
		if lastErr == nil {
			p.logger.Debug("message published",
				"job_id", msg.JobID,
				"type", msg.Type,
				"bytes", len(body),
				"attempt", attempt+1,
			)
			return nil
		}

		p.logger.Warn("publish failed",
			"job_id", msg.JobID,
			"attempt", attempt+1,
			"error", lastErr,
		)
		if attempt == p.cfg.PublishRetries {
			break
		}
		select {
		case <-ctx.Done():
			return &Error{JobID: msg.JobID, Target: msg.Target, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return &Error{JobID: msg.JobID, Target: msg.Target, Err: lastErr}
}
