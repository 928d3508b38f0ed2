// Package queue contains the background consumer that listens to the
// seat.events queue and appends one line per event to a log file.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// EventLogFile is the file, under the consumer's log directory, that
// receives the formatted events.
const EventLogFile = "seat-events.log"

// Consumer drains SeatEventsQueue into Dir/EventLogFile.
type Consumer struct {
    URL string
    Dir string
    Log *zap.Logger
}

func NewConsumer(url, dir string, log *zap.Logger) *Consumer {
    if log == nil {
        log = zap.NewNop()
    }
    return &Consumer{URL: url, Dir: dir, Log: log}
}

// Run connects to RabbitMQ, declares the durable queue and consumes until
// ctx is cancelled.  Dial failures and dropped connections are retried with
// exponential backoff capped at 30s; a message that cannot be handled is
// rejected without requeue so the loop keeps moving.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warn("seat-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn("seat-consumer: consume loop ended; reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn("seat-consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(SeatEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(SeatEventsQueue, "", false, false, false, false, nil)
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
            if err := c.handleMessage(d.Body); err != nil {
                c.Log.Error("seat-consumer: handle message failed", zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handleMessage(body []byte) error {
    var ev SeatEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    if err := os.MkdirAll(c.Dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.Dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.Dir, EventLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// formatLine renders ev as a single human-friendly line.
func formatLine(ev SeatEvent) string {
    switch ev.Type {
    case "registry.initialized":
        return fmt.Sprintf("[%s] Registry initialized | registry=%s | name=%q | symbol=%s | admin=%s\n",
            ev.OccurredAt, ev.Registry, ev.Name, ev.Symbol, ev.Admin)
    case "seat.minted":
        return fmt.Sprintf("[%s] Seat minted | registry=%s | seat=%d | owner=%s\n",
            ev.OccurredAt, ev.Registry, ev.SeatNumber, ev.To)
    case "seat.transferred":
        return fmt.Sprintf("[%s] Seat transferred | registry=%s | seat=%d | from=%s | to=%s\n",
            ev.OccurredAt, ev.Registry, ev.SeatNumber, ev.From, ev.To)
    default:
        return fmt.Sprintf("[%s] %s | registry=%s | seat=%d\n", ev.OccurredAt, ev.Type, ev.Registry, ev.SeatNumber)
    }
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
