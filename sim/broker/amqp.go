package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ConnConfig holds the connection parameters of the queue service.
type ConnConfig struct {
	Host     string
	Port     int
	VHost    string
	Username string
	Password string
}

// URI renders the AMQP connection URI. The password is included.
func (c ConnConfig) URI() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Vhost:    c.VHost,
	}.String()
}

// amqpChannel is the part of *amqp.Channel the broker uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Close() error
}

// AMQP is a Broker backed by a RabbitMQ connection and a single channel.
// Messages go through the default exchange with the queue name as routing key.
//
// The channel calls do not observe a context. When ctx ends before a call
// returns, the broker closes the connection to unblock it and reports
// ErrConnection for every later call.
type AMQP struct {
	mu        sync.Mutex // amqp.Channel must not be used from several goroutines at once
	ch        amqpChannel
	closeConn func() error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newAMQP(ch amqpChannel, closeConn func() error) *AMQP {
	return &AMQP{ch: ch, closeConn: closeConn}
}

// DialAMQP connects and opens a channel. Any failure wraps ErrConnection.
func DialAMQP(ctx context.Context, cfg ConnConfig) (*AMQP, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	conn, err := amqp.DialConfig(cfg.URI(), amqp.Config{Vhost: cfg.VHost})
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s:%d: %v", ErrConnection, cfg.Host, cfg.Port, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: opening channel: %v", ErrConnection, err)
	}
	logrus.Debugf("connected to amqp://%s:%d%s", cfg.Host, cfg.Port, cfg.VHost)
	return newAMQP(ch, conn.Close), nil
}

// do runs op against the channel, returning ctx.Err() if ctx ends first.
// Errors from op wrap ErrConnection.
func (a *AMQP) do(ctx context.Context, what string, op func(ch amqpChannel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.closed.Load() {
		return fmt.Errorf("%w: %s: %w", ErrConnection, what, ErrClosed)
	}
	done := make(chan error, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.closed.Load() {
			done <- ErrClosed
			return
		}
		done <- op(a.ch)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConnection, what, err)
		}
		return nil
	case <-ctx.Done():
		a.closed.Store(true)
		logrus.Warnf("amqp %s did not return before %v; closing the connection", what, ctx.Err())
		go func() { _ = a.Close() }()
		return ctx.Err()
	}
}

func (a *AMQP) Declare(ctx context.Context, queue string) error {
	return a.do(ctx, "declaring "+queue, func(ch amqpChannel) error {
		_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
		return err
	})
}

func (a *AMQP) Publish(ctx context.Context, queue string, body []byte) error {
	return a.do(ctx, "publishing to "+queue, func(ch amqpChannel) error {
		return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	})
}

// Get issues basic.get with auto-ack, so the server forgets the message as
// soon as it is delivered.
func (a *AMQP) Get(ctx context.Context, queue string) ([]byte, bool, error) {
	var (
		msg amqp.Delivery
		ok  bool
	)
	err := a.do(ctx, "get from "+queue, func(ch amqpChannel) error {
		var err error
		msg, ok, err = ch.Get(queue, true)
		return err
	})
	if err != nil || !ok {
		return nil, false, err
	}
	return msg.Body, true, nil
}

// Close closes the channel and the connection. It does not wait for a call
// in flight, and later calls return the first result.
func (a *AMQP) Close() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if a.ch != nil {
			a.closeErr = a.ch.Close()
		}
		if a.closeConn != nil {
			if err := a.closeConn(); err != nil && a.closeErr == nil {
				a.closeErr = err
			}
		}
	})
	return a.closeErr
}

var _ Broker = (*AMQP)(nil)
