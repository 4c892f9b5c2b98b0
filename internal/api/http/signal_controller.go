package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/service"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// SignalController serves the websocket transport. Each connection gets a
// read pump on the handler goroutine and a write pump draining the
// participant queue.
type SignalController struct {
	relay    service.RelayInteractor
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewSignalController(relay service.RelayInteractor, origins []string, log *slog.Logger) *SignalController {
	if log == nil {
		log = slog.Default()
	}
	anyOrigin := allowsAnyOrigin(origins)
	return &SignalController{
		relay: relay,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if anyOrigin {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range origins {
					if o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

func (c *SignalController) Serve(ctx *gin.Context) {
	const op = "api.http.signal.serve"

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Info("failed to upgrade connection", slog.String("op", op), sl.Err(err))
		return
	}

	participant := c.relay.Connect(domain.TransportWebSocket)
	log := c.log.With(
		slog.String("op", op),
		slog.String("participant_id", participant.ID),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, participant, log)
	}()

	c.readPump(conn, participant, log)

	c.relay.Disconnect(context.Background(), participant.ID)
	<-done
}

func (c *SignalController) readPump(conn *websocket.Conn, participant *domain.Participant, log *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		participant.Touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg domain.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Info("websocket closed", sl.Err(err))
			}
			return
		}

		if err := c.relay.HandleSignal(context.Background(), participant.ID, &msg); err != nil {
			log.Info("signal rejected", sl.Err(err))
			if errors.Is(err, service.ErrParticipantNotFound) {
				return
			}
			participant.EnqueueEvent(domain.NewErrorMessage(err))
		}
	}
}

func writePump(conn *websocket.Conn, participant *domain.Participant, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	events := participant.Events()
	for {
		select {
		case event, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Debug("write failed", sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
