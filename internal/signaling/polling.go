package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
)

const (
	pollWait        = 25 * time.Second
	pollRetryDelay  = time.Second
	maxPollFailures = 3
)

var errGone = errors.New("participant gone")

// PollingClient talks to the relay's long-poll endpoints. One goroutine
// holds a poll open, another posts outgoing envelopes in order.
type PollingClient struct {
	base          string
	participantID string
	http          *http.Client
	log           *slog.Logger

	incoming chan *domain.SignalMessage
	outgoing chan *domain.SignalMessage
	done     chan struct{}
	stopped  chan struct{}

	pollCtx    context.Context
	cancelPoll context.CancelFunc

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func DialPolling(ctx context.Context, baseURL string, client *http.Client, log *slog.Logger) (*PollingClient, error) {
	const op = "signaling.polling.dial"
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: pollWait + writeWait}
	}

	c := &PollingClient{
		base:     baseURL,
		http:     client,
		log:      log.With(slog.String("transport", "polling")),
		incoming: make(chan *domain.SignalMessage, queueSize),
		outgoing: make(chan *domain.SignalMessage, queueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	var resp struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/poll/connect", nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.ParticipantID == "" {
		return nil, fmt.Errorf("%s: empty participant id", op)
	}
	c.participantID = resp.ParticipantID

	c.pollCtx, c.cancelPoll = context.WithCancel(context.Background())
	go c.pollLoop()
	go c.sendLoop()

	return c, nil
}

func (c *PollingClient) Name() string {
	return "polling"
}

func (c *PollingClient) ParticipantID() string {
	return c.participantID
}

func (c *PollingClient) Send(msg *domain.SignalMessage) error {
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

func (c *PollingClient) Incoming() <-chan *domain.SignalMessage {
	return c.incoming
}

// Close flushes queued envelopes, deregisters from the relay and stops
// polling.
func (c *PollingClient) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	<-c.stopped
	return nil
}

func (c *PollingClient) pollLoop() {
	defer close(c.incoming)

	failures := 0
	for {
		var resp struct {
			Messages []domain.SignalMessage `json:"messages"`
		}
		path := "/api/poll/" + url.PathEscape(c.participantID) + "?wait=" + pollWait.String()
		err := c.do(c.pollCtx, http.MethodGet, path, nil, http.StatusOK, &resp)
		switch {
		case c.pollCtx.Err() != nil:
			return
		case errors.Is(err, errGone):
			c.log.Info("relay dropped participant")
			go c.Close()
			return
		case err != nil:
			failures++
			c.log.Warn("poll failed", slog.Int("failures", failures), sl.Err(err))
			if failures >= maxPollFailures {
				go c.Close()
				return
			}
			select {
			case <-time.After(pollRetryDelay):
			case <-c.pollCtx.Done():
				return
			}
			continue
		}

		failures = 0
		for i := range resp.Messages {
			select {
			case c.incoming <- &resp.Messages[i]:
			case <-c.pollCtx.Done():
				return
			}
		}
	}
}

func (c *PollingClient) sendLoop() {
	defer close(c.stopped)
	defer c.cancelPoll()

	for {
		select {
		case msg := <-c.outgoing:
			c.post(msg)
		case <-c.done:
			for {
				select {
				case msg := <-c.outgoing:
					c.post(msg)
					continue
				default:
				}
				break
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			path := "/api/poll/" + url.PathEscape(c.participantID)
			if err := c.do(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil); err != nil && !errors.Is(err, errGone) {
				c.log.Debug("disconnect failed", sl.Err(err))
			}
			cancel()
			return
		}
	}
}

func (c *PollingClient) post(msg *domain.SignalMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	path := "/api/poll/" + url.PathEscape(c.participantID) + "/send"
	if err := c.do(ctx, http.MethodPost, path, msg, http.StatusAccepted, nil); err != nil {
		c.log.Debug("send failed", slog.String("type", string(msg.Type)), sl.Err(err))
	}
}

func (c *PollingClient) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return errGone
	case resp.StatusCode != want:
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
