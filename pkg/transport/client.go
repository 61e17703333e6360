package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
)

// ErrConnectionClosed indicates an operation on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// ClientConfig configures the appliance transport client.
type ClientConfig struct {
	// ConnectTimeout bounds the TCP dial (default: 10s).
	ConnectTimeout time.Duration

	// Logger receives raw frame events. Defaults to a no-op logger.
	Logger log.Logger
}

// Client dials plain TCP connections to appliances.
type Client struct {
	config ClientConfig
}

// NewClient creates a transport client.
func NewClient(config ClientConfig) *Client {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	return &Client{config: config}
}

// Connect dials the appliance. connID tags the connection's log events.
func (c *Client) Connect(ctx context.Context, address, connID string) (*Conn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	reader := NewFrameReader(conn)
	writer := NewFrameWriter(conn)
	reader.SetLogger(c.config.Logger, connID)
	writer.SetLogger(c.config.Logger, connID)

	return &Conn{
		conn:    conn,
		reader:  reader,
		writer:  writer,
		closeCh: make(chan struct{}),
	}, nil
}

// Conn is one transport connection to an appliance.
type Conn struct {
	conn    net.Conn
	reader  *FrameReader
	writer  *FrameWriter
	closeCh chan struct{}

	closeOnce sync.Once
	readMu    sync.Mutex
}

// RemoteAddr returns the appliance address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes one framed message.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.writer.WriteFrame(frame)
}

// Receive reads one complete frame. A non-zero timeout bounds the read;
// zero blocks until a frame or connection error.
func (c *Conn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	return c.reader.ReadFrame()
}

// Close closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
