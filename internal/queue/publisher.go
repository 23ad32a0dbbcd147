package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Publisher publishes domain events to durable RabbitMQ queues.  A
// connection is dialed per publish; events are rare (one per booking) so
// this keeps the publisher free of reconnect state.  With an empty URL
// events are dropped and logged at debug level.
type Publisher struct {
    url string
    log *zap.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{url: url, log: log.Named("publisher")}
}

// PublishBookingConfirmed publishes ev to booking.confirmed.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
    return p.publish(ctx, BookingConfirmedQueue, ev)
}

// PublishPaymentUnfulfilled publishes ev to payment.unfulfilled.
func (p *Publisher) PublishPaymentUnfulfilled(ctx context.Context, ev PaymentUnfulfilledEvent) error {
    return p.publish(ctx, PaymentUnfulfilledQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event interface{}) error {
    body, err := json.Marshal(event)
    if err != nil {
        return err
    }
    if p.url == "" {
        p.log.Debug("broker not configured, event dropped", zap.String("queue", queue), zap.ByteString("body", body))
        return nil
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Warn("dial failed", zap.String("queue", queue), zap.Error(err))
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warn("channel open failed", zap.Error(err))
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if err := declare(ch, queue); err != nil {
        p.log.Warn("queue declare failed", zap.String("queue", queue), zap.Error(err))
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",    // default exchange
        queue, // routing key = queue name
        false, // mandatory
        false, // immediate
        pub,
    ); err != nil {
        p.log.Warn("publish failed", zap.String("queue", queue), zap.Error(err))
        return err
    }
    return nil
}

func declare(ch *amqp.Channel, queue string) error {
    _, err := ch.QueueDeclare(
        queue,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    )
    return err
}
