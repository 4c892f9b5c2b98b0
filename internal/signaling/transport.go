package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
)

var (
	ErrClosed           = errors.New("signaling transport closed")
	ErrQueueFull        = errors.New("signaling send queue full")
	ErrNoTransport      = errors.New("no signaling transport available")
	ErrUnknownTransport = errors.New("unknown signaling transport")
)

const queueSize = 64

// Transport carries envelopes to and from the relay. Send only queues the
// envelope. Incoming is closed when the connection ends.
type Transport interface {
	Name() string
	Send(msg *domain.SignalMessage) error
	Incoming() <-chan *domain.SignalMessage
	Close() error
}

// Dial tries the named transports in order and returns the first that
// connects.
func Dial(ctx context.Context, relayURL string, transports []string, log *slog.Logger) (Transport, error) {
	const op = "signaling.dial"
	if log == nil {
		log = slog.Default()
	}

	var errs []error
	for _, name := range transports {
		var (
			t   Transport
			err error
		)
		switch name {
		case "websocket":
			t, err = DialWebSocket(ctx, websocketURL(relayURL), log)
		case "polling":
			t, err = DialPolling(ctx, strings.TrimRight(relayURL, "/"), nil, log)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownTransport, name)
		}
		if err == nil {
			log.Info("signaling connected", slog.String("op", op), slog.String("transport", name))
			return t, nil
		}
		log.Warn("signaling transport failed", slog.String("op", op), slog.String("transport", name), sl.Err(err))
		errs = append(errs, err)
	}

	return nil, fmt.Errorf("%s: %w", op, errors.Join(append([]error{ErrNoTransport}, errs...)...))
}

func websocketURL(relayURL string) string {
	u, err := url.Parse(relayURL)
	if err != nil {
		return relayURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	return u.String()
}
