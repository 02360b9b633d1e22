package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/aswinmurali/servicehub/internal/config"
    "github.com/aswinmurali/servicehub/internal/events"
)

// AuditLogFile is the file the consumer appends to inside the log dir.
const AuditLogFile = "auth.log"

// StartAuditConsumer connects to RabbitMQ, declares the audit queue
// (durable) and appends every message to <LogDir>/auth.log as one line.
// It reconnects with backoff until ctx is cancelled.  Messages that cannot
// be decoded or written are rejected without requeue.
func StartAuditConsumer(ctx context.Context, cfg config.AuditConfig, logger *slog.Logger) error {
    if logger == nil {
        logger = slog.Default()
    }
    logger = logger.With("component", "audit-consumer", "queue", cfg.Queue)

    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            logger.Warn("dial broker failed", "err", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, cfg, logger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.Warn("consume loop ended, reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-t.C:
        return true
    case <-ctx.Done():
        return false
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.AuditConfig, logger *slog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Warn("set QoS failed", "err", err)
    }
    if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(cfg.LogDir, d.Body); err != nil {
                logger.Error("handle message failed", "err", err)
                _ = d.Nack(false, false) // do not requeue poison messages
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes body and appends it to dir/auth.log.
func HandleMessage(dir string, body []byte) error {
    var ev AuthEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-friendly line.
func FormatLine(ev AuthEvent) string {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt, describe(ev.Type))
    fmt.Fprintf(&b, " | event_id=%s", ev.ID)
    if ev.SubjectID != "" {
        fmt.Fprintf(&b, " | subject_id=%s", ev.SubjectID)
    }
    if ev.Email != "" {
        fmt.Fprintf(&b, " | email=%q", ev.Email)
    }
    if ev.Role != "" {
        fmt.Fprintf(&b, " | role=%s", ev.Role)
    }
    if ev.Detail != "" {
        fmt.Fprintf(&b, " | detail=%q", ev.Detail)
    }
    b.WriteByte('\n')
    return b.String()
}

func describe(topic string) string {
    switch topic {
    case events.TopicSignedIn:
        return "Signed in"
    case events.TopicSignedOut:
        return "Signed out"
    case events.TopicProfileDegraded:
        return "Profile sync degraded"
    case events.TopicPasswordReset:
        return "Password reset requested"
    }
    return topic
}
