// Package relaytest runs an in-process relay for tests.
package relaytest

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	relayhttp "github.com/immxrtalbeast/meshrelay/internal/api/http"
	"github.com/immxrtalbeast/meshrelay/internal/repository"
	"github.com/immxrtalbeast/meshrelay/internal/service"
)

type Options struct {
	WebSocket     bool
	Polling       bool
	IncludeSender bool
	PollWait      time.Duration
}

// DefaultOptions enables both transports.
func DefaultOptions() Options {
	return Options{WebSocket: true, Polling: true, IncludeSender: true, PollWait: 200 * time.Millisecond}
}

type Server struct {
	*httptest.Server
	Relay *service.RelayService
}

func NewServer(t testing.TB, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := service.NewRelayService(
		repository.NewInMemoryRoomRegistry(),
		service.RelayOptions{QueueSize: 64, IncludeSender: opts.IncludeSender},
		log,
	)

	var (
		signal *relayhttp.SignalController
		poll   *relayhttp.PollController
	)
	if opts.WebSocket {
		signal = relayhttp.NewSignalController(relay, []string{"*"}, log)
	}
	if opts.Polling {
		poll = relayhttp.NewPollController(relay, opts.PollWait, log)
	}
	router := relayhttp.SetupRouter(
		relayhttp.RouterOptions{CORSOrigins: []string{"*"}},
		signal, poll, relayhttp.NewRoomController(relay),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &Server{Server: srv, Relay: relay}
}
