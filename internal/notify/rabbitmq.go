// Package notify публикует итог запуска в RabbitMQ, чтобы внешние системы
// (CI, дашборды) узнавали о новых документах на ревью.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"procedure-review/shared/models"
)

// publishTimeout ограничивает публикацию одного сообщения.
const publishTimeout = 5 * time.Second

// RabbitMQNotifier публикует RunNotification в очередь результатов.
type RabbitMQNotifier struct {
	mu         sync.Mutex
	conn       *amqp091.Connection
	ch         *amqp091.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// Dial подключается к брокеру и объявляет durable-очередь результатов.
func Dial(url, queueName string, logger *zap.Logger) (*RabbitMQNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	n, err := newRabbitMQNotifier(conn, "", "", queueName, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return n, nil
}

func newRabbitMQNotifier(conn *amqp091.Connection, exchange, routingKey, queueName string, logger *zap.Logger) (*RabbitMQNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel for publisher: %w", err)
	}

	// Без exchange публикуем прямо в очередь
	if exchange == "" && queueName != "" {
		_, err := ch.QueueDeclare(
			queueName,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // arguments
		)
		if err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to declare result queue %s: %w", queueName, err)
		}
		if routingKey == "" {
			routingKey = queueName
		}
	}

	return &RabbitMQNotifier{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger.Named("rabbitmq_publisher"),
	}, nil
}

// Notify публикует уведомление; RunID используется как correlation id.
func (p *RabbitMQNotifier) Notify(ctx context.Context, n models.RunNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("publisher channel is closed")
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			CorrelationId: n.RunID,
			Timestamp:     time.Now().UTC(),
			Body:          body,
			DeliveryMode:  amqp091.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	p.logger.Debug("Run notification published",
		zap.String("run_id", n.RunID),
		zap.String("routing_key", p.routingKey),
	)
	return nil
}

// Close закрывает канал и соединение. Повторный вызов безопасен.
func (p *RabbitMQNotifier) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
