package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends reservation events to RabbitMQ.  Each call dials its
// own connection, so a broker outage only affects the events raised
// while it lasts.  Errors are logged and returned; callers are expected
// to carry on with the request.
type Publisher struct {
	URL   string
	Queue string
	Log   *logrus.Logger
}

// NewPublisher returns a Publisher for the reservation queue at url.
func NewPublisher(url string, log *logrus.Logger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{URL: url, Queue: ReservationQueue, Log: log}
}

// Publish marshals ev and publishes it as a persistent message on the
// default exchange, routed to the publisher's queue.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	entry := p.Log.WithFields(logrus.Fields{"event": ev.Type, "reservation_id": ev.ReservationID})

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		entry.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		entry.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	entry.Debug("rabbitmq: event published")
	return nil
}
