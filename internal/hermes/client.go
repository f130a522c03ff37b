package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Connection defaults used when Options leaves a field zero.
const (
	DefaultName          = "taskscribe"
	DefaultQueueGroup    = "taskscribe"
	DefaultMaxReconnects = 60
	DefaultReconnectWait = 2 * time.Second
)

// Options configures the bus connection.
type Options struct {
	URL   string
	Token string
	Name  string // client name shown in NATS monitoring

	// QueueGroup load-balances subscribed events across instances
	// sharing the same group.
	QueueGroup string

	MaxReconnects int
	ReconnectWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.QueueGroup == "" {
		o.QueueGroup = DefaultQueueGroup
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = DefaultMaxReconnects
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = DefaultReconnectWait
	}
	return o
}

// natsOptions translates o into connect options, logging connection state
// changes to logger.
func (o Options) natsOptions(logger *slog.Logger) []nats.Option {
	opts := []nats.Option{
		nats.Name(o.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(o.MaxReconnects),
		nats.ReconnectWait(o.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("bus reconnected", "url", nc.ConnectedUrlRedacted())
		}),
	}
	if o.Token != "" {
		opts = append(opts, nats.Token(o.Token))
	}
	return opts
}

// Client publishes events and consumes them as a member of one queue group.
type Client struct {
	conn   *nats.Conn
	queue  string
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	opts = opts.withDefaults()
	nc, err := nats.Connect(opts.URL, opts.natsOptions(logger)...)
	if err != nil {
		return nil, fmt.Errorf("bus connect %s: %w", opts.URL, err)
	}
	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}
	return &Client{conn: nc, queue: opts.QueueGroup, logger: logger}, nil
}

// Drain lets in-flight handlers finish before closing the connection.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

// Publish sends data as JSON.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return c.conn.Publish(subject, payload)
}

// Subscribe joins the client's queue group on subject, so each event
// reaches one instance of the group.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.QueueSubscribe(subject, c.queue, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject, "queue", c.queue)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
