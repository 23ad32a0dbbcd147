package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Consumer drains booking.confirmed and payment.unfulfilled and appends
// one line per event to booking.log and reconciliation.log under Dir.
// Run keeps reconnecting with backoff until its context is cancelled.
type Consumer struct {
    url string
    dir string
    log *zap.Logger

    mu sync.Mutex // serializes file appends across the two queues
}

// NewConsumer returns a Consumer writing under dir (default "logs").
func NewConsumer(url, dir string, log *zap.Logger) *Consumer {
    if dir == "" {
        dir = "logs"
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Consumer{url: url, dir: dir, log: log.Named("consumer")}
}

// Run consumes until ctx is done and then returns nil.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            select {
            case <-ctx.Done():
                return nil
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
        select {
        case <-ctx.Done():
            return nil
        case <-time.After(2 * time.Second):
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("set QoS failed", zap.Error(err))
    }

    queues := []string{BookingConfirmedQueue, PaymentUnfulfilledQueue}
    deliveries := make([]<-chan amqp.Delivery, 0, len(queues))
    for _, q := range queues {
        if err := declare(ch, q); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        deliveries = append(deliveries, msgs)
    }

    booked, unfulfilled := deliveries[0], deliveries[1]
    for {
        var (
            d  amqp.Delivery
            ok bool
        )
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-booked:
        case d, ok = <-unfulfilled:
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := c.Handle(d.RoutingKey, d.Body); err != nil {
            c.log.Error("handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
}

// Handle decodes one message of the given queue and appends its audit line.
func (c *Consumer) Handle(queue string, body []byte) error {
    var (
        file string
        line string
    )
    switch queue {
    case BookingConfirmedQueue:
        var ev BookingConfirmedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        file = "booking.log"
        line = fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | ref=%s | user_id=%d | show_id=%d | movie=%q | starts_at=%s | amount=%d %s | payment_id=%s | seats=[%s]\n",
            ev.ConfirmedAt, ev.BookingID, ev.BookingRef, ev.UserID, ev.ShowID, ev.MovieTitle, ev.StartsAt,
            ev.AmountMinor, ev.Currency, ev.PaymentID, strings.Join(ev.Seats, ","))
    case PaymentUnfulfilledQueue:
        var ev PaymentUnfulfilledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        file = "reconciliation.log"
        line = fmt.Sprintf("[%s] Payment unfulfilled | user_id=%d | show_id=%d | amount=%d %s | order_id=%s | payment_id=%s | seats=[%s] | reason=%q\n",
            ev.RecordedAt, ev.UserID, ev.ShowID, ev.AmountMinor, ev.Currency, ev.OrderID, ev.PaymentID,
            strings.Join(ev.Seats, ","), ev.Reason)
    default:
        return fmt.Errorf("unknown queue %q", queue)
    }
    return c.appendLine(file, line)
}

func (c *Consumer) appendLine(name, line string) error {
    c.mu.Lock()
    defer c.mu.Unlock()

    if err := os.MkdirAll(c.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
