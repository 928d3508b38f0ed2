// Package queue_publisher publishes committed registry changes to RabbitMQ.
// Errors are logged and returned so the registry can record them without
// failing the call that produced the event.
package queue_publisher

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    q "github.com/iliyamo/seat-registry/internal/queue"
    "github.com/iliyamo/seat-registry/internal/registry"
)

// dialTimeout bounds connecting to the broker, which happens on the request
// path of the first call after the connection dropped.
const dialTimeout = 2 * time.Second

// Publisher is a registry.EventSink backed by the durable seat.events
// queue.  One connection is shared by all calls and re-dialled after it
// drops.
type Publisher struct {
    url string
    log *zap.Logger

    mu   sync.Mutex
    conn *amqp.Connection
}

var _ registry.EventSink = (*Publisher)(nil)

func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{url: url, log: log}
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev registry.Event) error {
    body, err := json.Marshal(ToSeatEvent(ev))
    if err != nil {
        p.log.Error("rabbitmq: marshal event failed", zap.Error(err))
        return err
    }

    ch, err := p.channel()
    if err != nil {
        p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.SeatEventsQueue, // name
        true,              // durable
        false,             // autoDelete
        false,             // exclusive
        false,             // noWait
        nil,               // args
    ); err != nil {
        p.log.Warn("rabbitmq: queue declare failed", zap.Error(err))
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    ev.OccurredAt.UTC(),
        Type:         string(ev.Type),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",                // default exchange
        q.SeatEventsQueue, // routing key = queue name
        false,             // mandatory
        false,             // immediate
        pub,
    ); err != nil {
        p.log.Warn("rabbitmq: publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
        return err
    }
    return nil
}

// Close releases the shared connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil {
        return nil
    }
    err := p.conn.Close()
    p.conn = nil
    return err
}

func (p *Publisher) channel() (*amqp.Channel, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil || p.conn.IsClosed() {
        conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
        if err != nil {
            return nil, err
        }
        p.conn = conn
    }
    return p.conn.Channel()
}

// ToSeatEvent converts a registry event into its wire form.
func ToSeatEvent(ev registry.Event) q.SeatEvent {
    out := q.SeatEvent{
        Type:       string(ev.Type),
        Registry:   ev.Registry,
        SeatNumber: uint32(ev.Seat),
        From:       ev.From.String(),
        To:         ev.To.String(),
        OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339),
    }
    if md := ev.Metadata; md != nil {
        out.Name = md.Name
        out.Symbol = md.Symbol
        out.Admin = md.Admin.String()
    }
    return out
}
