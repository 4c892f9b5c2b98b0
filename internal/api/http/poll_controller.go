package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/service"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
)

const maxPollBatch = 64

// PollController is the request/response fallback for clients that cannot
// hold a websocket open.
type PollController struct {
	relay    service.RelayInteractor
	log      *slog.Logger
	pollWait time.Duration
}

func NewPollController(relay service.RelayInteractor, pollWait time.Duration, log *slog.Logger) *PollController {
	if log == nil {
		log = slog.Default()
	}
	if pollWait <= 0 {
		pollWait = 25 * time.Second
	}
	return &PollController{relay: relay, log: log, pollWait: pollWait}
}

func (c *PollController) Connect(ctx *gin.Context) {
	participant := c.relay.Connect(domain.TransportPolling)
	ctx.JSON(http.StatusOK, gin.H{"participant_id": participant.ID})
}

func (c *PollController) Send(ctx *gin.Context) {
	const op = "api.http.poll.send"
	participantID := ctx.Param("participantID")

	var msg domain.SignalMessage
	if err := ctx.ShouldBindJSON(&msg); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if err := c.relay.HandleSignal(ctx.Request.Context(), participantID, &msg); err != nil {
		c.log.Info("signal rejected",
			slog.String("op", op),
			slog.String("participant_id", participantID),
			sl.Err(err),
		)
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"status": "ok"})
}

// Poll blocks until at least one event is queued or the wait runs out, then
// returns everything queued so far.
func (c *PollController) Poll(ctx *gin.Context) {
	participant, err := c.relay.Participant(ctx.Param("participantID"))
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	participant.Touch()
	defer participant.Touch()

	wait := c.pollWait
	if raw := ctx.Query("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait duration"})
			return
		}
		if d < wait {
			wait = d
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	messages := make([]domain.SignalMessage, 0)
	events := participant.Events()

	select {
	case event, ok := <-events:
		if !ok {
			ctx.JSON(http.StatusGone, gin.H{"error": service.ErrParticipantNotFound.Error()})
			return
		}
		messages = append(messages, event)
	case <-timer.C:
	case <-ctx.Request.Context().Done():
		return
	}

drain:
	for len(messages) > 0 && len(messages) < maxPollBatch {
		select {
		case event, ok := <-events:
			if !ok {
				break drain
			}
			messages = append(messages, event)
		default:
			break drain
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (c *PollController) Disconnect(ctx *gin.Context) {
	participantID := ctx.Param("participantID")
	if _, err := c.relay.Participant(participantID); err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.relay.Disconnect(ctx.Request.Context(), participantID)
	ctx.Status(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnsupportedKind), errors.Is(err, service.ErrMessageRequired):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
