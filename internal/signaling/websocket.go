package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type WebSocketClient struct {
	conn     *websocket.Conn
	log      *slog.Logger
	incoming chan *domain.SignalMessage
	outgoing chan *domain.SignalMessage
	done     chan struct{}
	stopped  chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func DialWebSocket(ctx context.Context, url string, log *slog.Logger) (*WebSocketClient, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &WebSocketClient{
		conn:     conn,
		log:      log.With(slog.String("transport", "websocket")),
		incoming: make(chan *domain.SignalMessage, queueSize),
		outgoing: make(chan *domain.SignalMessage, queueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *WebSocketClient) Name() string {
	return "websocket"
}

func (c *WebSocketClient) Send(msg *domain.SignalMessage) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}
	select {
	case c.outgoing <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *WebSocketClient) Incoming() <-chan *domain.SignalMessage {
	return c.incoming
}

// Close flushes queued envelopes and waits for the writer to exit.
func (c *WebSocketClient) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	<-c.stopped
	return nil
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
		_ = c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg domain.SignalMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("websocket closed", sl.Err(err))
			}
			return
		}
		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump drains outgoing before the close frame so a final leave still
// reaches the relay.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case msg := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("write failed", sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			for {
				select {
				case msg := <-c.outgoing:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(msg); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
