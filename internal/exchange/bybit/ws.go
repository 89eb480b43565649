// internal/exchange/bybit/ws.go
package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/souravmenon1999/ticker-dashboard/internal/exchange"
	"github.com/souravmenon1999/ticker-dashboard/internal/logging"
	"github.com/souravmenon1999/ticker-dashboard/internal/types"
)

const writeWait = 5 * time.Second

// Dialer opens public stream connections.
type Dialer struct {
	url              string
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	logger           zerolog.Logger
}

// NewDialer creates a Dialer for url. A zero pingInterval disables the heartbeat.
func NewDialer(url string, handshakeTimeout, pingInterval time.Duration) *Dialer {
	return &Dialer{
		url:              url,
		handshakeTimeout: handshakeTimeout,
		pingInterval:     pingInterval,
		logger:           logging.Component("bybit_ws"),
	}
}

var _ exchange.StreamDialer = (*Dialer)(nil)

// Dial establishes the WebSocket connection.
func (d *Dialer) Dial(ctx context.Context) (exchange.StreamConn, error) {
	d.logger.Info().Str("url", d.url).Msg("Connecting to Bybit WebSocket")
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		d.logger.Error().Err(err).Str("url", d.url).Msg("Failed to connect to Bybit WebSocket")
		return nil, types.NewTransportError("dial "+d.url, err)
	}
	d.logger.Info().Str("url", d.url).Msg("Bybit WebSocket connected")

	c := &WSClient{conn: conn, url: d.url, logger: d.logger}
	if d.pingInterval > 0 {
		if err := c.startHeartbeat(d.pingInterval); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// WSClient manages a single public WebSocket connection.
type WSClient struct {
	conn      *websocket.Conn
	url       string
	logger    zerolog.Logger
	heartbeat *cron.Cron

	mu     sync.Mutex // serializes writes and guards closed
	closed bool
}

var _ exchange.StreamConn = (*WSClient)(nil)

// startHeartbeat sends {"op":"ping"} on a fixed schedule. Bybit drops public
// connections that stay silent for too long.
func (c *WSClient) startHeartbeat(every time.Duration) error {
	c.heartbeat = cron.New()
	_, err := c.heartbeat.AddFunc(fmt.Sprintf("@every %s", every), func() {
		if err := c.Ping(); err != nil {
			c.logger.Debug().Err(err).Msg("Heartbeat ping failed")
		}
	})
	if err != nil {
		return types.NewTransportError("schedule heartbeat", err)
	}
	c.heartbeat.Start()
	return nil
}

// Subscribe sends a subscription message
func (c *WSClient) Subscribe(topic string) error {
	if err := c.send(WSRequest{ReqID: uuid.NewString(), Op: OpSubscribe, Args: []string{topic}}); err != nil {
		c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe")
		return err
	}
	c.logger.Info().Str("topic", topic).Msg("Subscription sent")
	return nil
}

// Unsubscribe sends an unsubscription message
func (c *WSClient) Unsubscribe(topic string) error {
	if err := c.send(WSRequest{ReqID: uuid.NewString(), Op: OpUnsubscribe, Args: []string{topic}}); err != nil {
		return err
	}
	c.logger.Info().Str("topic", topic).Msg("Unsubscription sent")
	return nil
}

// Ping sends an application-level heartbeat.
func (c *WSClient) Ping() error {
	return c.send(WSRequest{ReqID: uuid.NewString(), Op: OpPing})
}

func (c *WSClient) send(v WSRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return types.NewTransportClosed(nil)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return types.NewTransportError("set write deadline", err)
	}
	if err := c.conn.WriteJSON(v); err != nil {
		return types.NewTransportError("write "+v.Op, err)
	}
	return nil
}

// ReadMessage blocks for the next frame. A close frame from the server or a
// local Close yields a TransportClosed error; anything else is a TransportError.
func (c *WSClient) ReadMessage() ([]byte, error) {
	_, message, err := c.conn.ReadMessage()
	if err == nil {
		return message, nil
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) || c.isClosed() {
		return nil, types.NewTransportClosed(err)
	}
	return nil, types.NewTransportError("read", err)
}

func (c *WSClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close terminates the WebSocket connection. Safe to call more than once.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.heartbeat != nil {
		// not waiting for a running ping: it needs c.mu
		c.heartbeat.Stop()
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.logger.Info().Str("url", c.url).Msg("Bybit WebSocket closed")
	return err
}
