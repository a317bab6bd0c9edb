// Package events publishes notifications about generated reports to a
// RabbitMQ fanout exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"finreport_srv/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	// ReportGeneratedType тип сообщения в заголовке AMQP
	ReportGeneratedType = "report.generated"

	exchangeKind   = "fanout"
	publishTimeout = 5 * time.Second
)

// ReportGenerated is emitted after a document has been stored and recorded.
type ReportGenerated struct {
	FileName    string    `json:"fileName"`
	FileKey     string    `json:"fileKey"`
	ClientName  string    `json:"clientName"`
	ReportType  string    `json:"reportType"`
	ReportYear  int       `json:"reportYear"`
	RequestID   string    `json:"requestId,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Publisher отправляет события о сгенерированных отчетах
type Publisher interface {
	Publish(ctx context.Context, event ReportGenerated) error
	Close() error
}

// NoopPublisher используется, когда события отключены
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ReportGenerated) error { return nil }
func (NoopPublisher) Close() error                                   { return nil }

// AMQPPublisher публикует события в fanout exchange
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *logrus.Logger
}

// NewAMQPPublisher подключается к брокеру и объявляет exchange
func NewAMQPPublisher(url, exchange string, logger *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeKind, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	logger.WithField("exchange", exchange).Info("Публикация событий в RabbitMQ включена")

	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish отправляет событие в exchange
func (p *AMQPPublisher) Publish(ctx context.Context, event ReportGenerated) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ReportGeneratedType, err)
	}
	return nil
}

// Close закрывает канал и соединение
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	if err := p.conn.Close(); err != nil && err != amqp.ErrClosed {
		return err
	}
	if chErr != nil && chErr != amqp.ErrClosed {
		return chErr
	}
	return nil
}

func newPublishing(event ReportGenerated) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.FileName,
		Timestamp:    event.GeneratedAt,
		Type:         ReportGeneratedType,
		AppId:        "finreport",
		Body:         body,
	}, nil
}

// NewPublisherFromConfig создает издателя согласно конфигурации
func NewPublisherFromConfig(cfg config.Config, logger *logrus.Logger) (Publisher, error) {
	if !cfg.Events.Enabled {
		logger.Debug("Публикация событий отключена")
		return NoopPublisher{}, nil
	}

	pub, err := NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}
