// Package messaging carries click events between the API process and the
// analytics worker over a durable RabbitMQ queue.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const contentType = "application/json"

func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}

func open(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return conn, ch, nil
}

// Publisher sends click events to the queue as persistent JSON messages
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, ch, err := open(url, queue)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish enqueues one event
func (p *Publisher) Publish(ctx context.Context, event *model.ClickEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}

// Handler processes one decoded event. Returning an error requeues the
// delivery once; a second failure drops it.
type Handler func(ctx context.Context, event *model.ClickEvent) error

// Consumer reads click events with manual acknowledgements
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
	logger   *slog.Logger
}

func NewConsumer(url, queue string, prefetch int, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if prefetch < 1 {
		prefetch = 1
	}
	conn, ch, err := open(url, queue)
	if err != nil {
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, prefetch: prefetch, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
// Up to prefetch deliveries are handled concurrently; Run returns once the
// in-flight ones have been acked or nacked.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	var g errgroup.Group
	g.SetLimit(c.prefetch)
	defer g.Wait()

	c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "queue", c.queue)
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			g.Go(func() error {
				c.process(ctx, d, handle)
				return nil
			})
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery, handle Handler) {
	var event model.ClickEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error("dropping malformed click event", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := handle(ctx, &event); err != nil {
		requeue := !d.Redelivered
		c.logger.Error("failed to handle click event", "link_id", event.LinkID, "requeue", requeue, "error", err)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}
