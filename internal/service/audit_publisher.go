// Package service forwards session events to the message broker.
// Publishing is best effort: errors are logged and returned so callers
// can ignore them without interrupting the session flow.
package service

import (
    "context"
    "encoding/json"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/aswinmurali/servicehub/internal/events"
    q "github.com/aswinmurali/servicehub/internal/queue"
)

// Publisher sends an audit event somewhere durable.
type Publisher interface {
    Publish(ctx context.Context, ev q.AuthEvent) error
}

// AMQPPublisher publishes AuthEvents to a durable RabbitMQ queue.  Each
// call dials its own connection; audit traffic is a handful of messages
// per session.
type AMQPPublisher struct {
    URL    string
    Queue  string
    Logger *slog.Logger
}

// Publish marshals ev and sends it as a persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev q.AuthEvent) error {
    logger := p.Logger
    if logger == nil {
        logger = slog.Default()
    }
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        logger.Warn("rabbitmq: dial failed", "err", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        logger.Warn("rabbitmq: channel open failed", "err", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
        logger.Warn("rabbitmq: queue declare failed", "queue", p.Queue, "err", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.ID,
        Type:         ev.Type,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
        logger.Warn("rabbitmq: publish failed", "err", err)
        return err
    }
    return nil
}

// Attach forwards every session topic of bus to pub on the bus's async
// workers.
func Attach(bus *events.Bus, pub Publisher, logger *slog.Logger) error {
    if logger == nil {
        logger = slog.Default()
    }
    forward := func(ev events.Event) {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        if err := pub.Publish(ctx, q.FromEvent(ev)); err != nil {
            logger.Warn("audit publish failed", "topic", ev.Topic, "event_id", ev.ID, "err", err)
        }
    }
    for _, topic := range events.Topics() {
        if err := bus.SubscribeAsync(topic, forward); err != nil {
            return err
        }
    }
    return nil
}

// ResetLinks hands password reset links to the audit trail, where the
// consumer writes them to auth.log.  It is the self-hosted provider's
// delivery channel.
type ResetLinks struct {
    Bus *events.Bus
}

func (r ResetLinks) SendPasswordReset(_ context.Context, subjectID, email, link string) error {
    r.Bus.Publish(events.Event{
        Topic:     events.TopicPasswordReset,
        SubjectID: subjectID,
        Email:     email,
        Detail:    link,
    })
    return nil
}
