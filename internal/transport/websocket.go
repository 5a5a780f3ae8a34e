package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/foldsync/foldsync/internal/events"
)

// PushClient subscribes to remote change notifications over a
// websocket. One instance serves one folder pair; the engine owns it
// outright, replacing the process-wide hub the protocol grew up with.
type PushClient struct {
	url          string
	remoteFolder string
	logger       *events.Logger

	// Connection state
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Channels
	pushes chan PushEvent
	done   chan struct{}

	// Connection-state callback, informational only
	stateFn func(string)

	// Heartbeat
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewPushClient creates a push notification client.
func NewPushClient(hubURL, remoteFolder string, stateFn func(string), logger *events.Logger) *PushClient {
	// Convert http(s) endpoints to ws(s)
	if len(hubURL) > 4 && hubURL[:4] == "http" {
		hubURL = "ws" + hubURL[4:]
	}

	if stateFn == nil {
		stateFn = func(string) {}
	}

	return &PushClient{
		url:          hubURL,
		remoteFolder: remoteFolder,
		logger:       logger.WithField("component", "push_client"),
		pushes:       make(chan PushEvent, 100),
		done:         make(chan struct{}),
		stateFn:      stateFn,
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
	}
}

// Connect establishes the websocket subscription.
func (c *PushClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}
	if c.closed {
		return fmt.Errorf("client closed")
	}

	c.logger.WithField("url", c.url).Info("Connecting to push channel")

	headers := http.Header{}
	headers.Set("X-Sync-Folder", c.remoteFolder)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		c.stateFn("error: " + err.Error())
		if resp != nil {
			return fmt.Errorf("push channel connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("push channel connect failed: %w", err)
	}

	c.conn = conn

	go c.readLoop()
	go c.pingLoop()

	c.stateFn("connected")
	c.logger.Info("Push channel connected")
	return nil
}

// Events returns the notification stream. The channel is closed when
// the connection ends.
func (c *PushClient) Events() <-chan PushEvent {
	return c.pushes
}

// Close tears the subscription down. Safe to call more than once.
func (c *PushClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err := c.conn.Close()
		c.conn = nil
		c.stateFn("disconnected")
		return err
	}
	return nil
}

// readLoop receives push events until the connection ends. A blocking
// receive drives delivery; there is no polling thread.
func (c *PushClient) readLoop() {
	defer close(c.pushes)

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))
			return nil
		})

		var event PushEvent
		if err := conn.ReadJSON(&event); err != nil {
			select {
			case <-c.done:
				// Normal shutdown
			default:
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure) {
					c.logger.WithError(err).Error("Push channel read error")
				}
				c.stateFn("disconnected: " + err.Error())
			}
			return
		}

		if event.Type != PushFileChanged && event.Type != PushFileDeleted {
			c.logger.WithField("type", event.Type).Debug("Ignoring push event type")
			continue
		}

		c.logger.WithFields(map[string]interface{}{
			"type": event.Type,
			"name": event.Name,
		}).Debug("Received push event")

		select {
		case c.pushes <- event:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic pings to keep the subscription alive.
func (c *PushClient) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				return
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.WithError(err).Error("Ping failed")
				return
			}

		case <-c.done:
			return
		}
	}
}
