package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ledgerdesk/internal/log"
	"ledgerdesk/internal/metrics"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes and consumes pipeline messages on one durable queue bound
// to a direct exchange. A lost connection is re-dialled on the next publish;
// consumers reconnect with exponential backoff.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials url and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
	if _, err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect returns the open channel, dialling when needed.
func (c *Client) connect() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return channel, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name; the message type travels in the
	// Type property.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishDocumentPosted publishes a document.posted message.
func (c *Client) PublishDocumentPosted(ctx context.Context, msg *DocumentPostedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeDocumentPosted, msg.DocumentID, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published document posted message",
		log.FieldCompanyID, msg.CompanyID,
		log.FieldDocumentID, msg.DocumentID,
		log.FieldDocNumber, msg.Number)
	return nil
}

// PublishEmployeeCreated publishes an employee.created message.
func (c *Client) PublishEmployeeCreated(ctx context.Context, msg *EmployeeCreatedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeEmployeeCreated, msg.EmployeeID, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published employee created message",
		log.FieldCompanyID, msg.CompanyID,
		log.FieldEmployeeID, msg.EmployeeID)
	return nil
}

func (c *Client) publish(ctx context.Context, typ, messageID string, body []byte) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.MessagesPublished.WithLabelValues(typ, outcome).Inc()
	}()

	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", typ, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	channel, err := c.connect()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         typ,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// Handlers receives decoded messages. A nil handler acknowledges and drops
// its message type.
type Handlers struct {
	DocumentPosted  func(context.Context, *DocumentPostedMessage) error
	EmployeeCreated func(context.Context, *EmployeeCreatedMessage) error
}

// Consume delivers messages to handlers until ctx is cancelled, reconnecting
// when the broker goes away.
func (c *Client) Consume(ctx context.Context, h Handlers) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, h)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "AMQP consumer disconnected, reconnecting",
			log.FieldError, err,
			"attempt", attempt,
			"backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, h Handlers) error {
	channel, err := c.connect()
	if err != nil {
		return err
	}
	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming pipeline messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return amqp091.ErrClosed
			}
			c.dispatch(ctx, d.Type, d.Body, d, h)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// dispatch decodes one delivery and settles it: ack on success, requeue on
// handler failure, drop on malformed input.
func (c *Client) dispatch(ctx context.Context, typ string, body []byte, ack acknowledger, h Handlers) {
	var err error
	switch typ {
	case TypeDocumentPosted:
		msg, decodeErr := DocumentPostedMessageFromJSON(body)
		if decodeErr != nil {
			c.reject(ctx, typ, decodeErr, ack)
			return
		}
		if h.DocumentPosted != nil {
			err = h.DocumentPosted(ctx, msg)
		}
	case TypeEmployeeCreated:
		msg, decodeErr := EmployeeCreatedMessageFromJSON(body)
		if decodeErr != nil {
			c.reject(ctx, typ, decodeErr, ack)
			return
		}
		if h.EmployeeCreated != nil {
			err = h.EmployeeCreated(ctx, msg)
		}
	default:
		c.reject(ctx, typ, fmt.Errorf("unknown message type %q", typ), ack)
		return
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message", "type", typ, log.FieldError, err)
		ack.Nack(false, true)
		return
	}
	ack.Ack(false)
}

func (c *Client) reject(ctx context.Context, typ string, err error, ack acknowledger) {
	c.logger.ErrorContext(ctx, "Dropping undecodable message", "type", typ, log.FieldError, err)
	ack.Nack(false, false)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// closeLocked tears down the channel and connection. Caller holds c.mu.
func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
