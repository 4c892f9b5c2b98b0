package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/transfer"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

var (
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
)

type Options struct {
	ConnectTimeout time.Duration
	Transfer       transfer.Options
	MaxFileSize    int64
}

// Controller turns relay envelopes into session operations. The participant
// that receives the roster offers to every member; everyone else only
// answers, so each pair negotiates exactly once.
type Controller struct {
	factory   ConnFactory
	signaller Signaller
	tracks    TrackSource
	observer  Observer
	opts      Options
	log       *slog.Logger
	table     *Table

	mu      sync.RWMutex
	localID string
}

func NewController(factory ConnFactory, signaller Signaller, tracks TrackSource, observer Observer, opts Options, log *slog.Logger) *Controller {
	if observer == nil {
		observer = NopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		factory:   factory,
		signaller: signaller,
		tracks:    tracks,
		observer:  observer,
		opts:      opts,
		log:       log,
		table:     NewTable(),
	}
}

func (c *Controller) SetLocalID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localID = id
}

func (c *Controller) LocalID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.localID
}

// HandleRoster opens an offering session to every listed member.
func (c *Controller) HandleRoster(users []string) {
	const op = "peer.controller.roster"
	local := c.LocalID()

	for _, id := range users {
		if id == "" || id == local {
			continue
		}
		if _, ok := c.table.Get(id); ok {
			continue
		}
		s, err := c.newSession(id, true)
		if err != nil {
			c.log.Error("failed to create session", slog.String("op", op), slog.String("peer_id", id), sl.Err(err))
			c.observer.OnPeerFailed(id, err)
			continue
		}
		s.Start()
	}
}

func (c *Controller) HandleSignal(msg *domain.SignalMessage) error {
	const op = "peer.controller.signal"

	from := msg.SenderID
	if from == "" || from == c.LocalID() {
		return nil
	}

	switch msg.Type {
	case domain.KindOffer:
		desc, err := msg.SessionDescription()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s, ok := c.table.Get(from)
		if !ok {
			s, err = c.newSession(from, false)
			if err != nil {
				c.observer.OnPeerFailed(from, err)
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		s.HandleOffer(desc)
	case domain.KindAnswer:
		desc, err := msg.SessionDescription()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s, ok := c.table.Get(from)
		if !ok {
			c.log.Debug("answer for unknown peer", slog.String("op", op), slog.String("peer_id", from))
			return nil
		}
		s.HandleAnswer(desc)
	case domain.KindICE:
		candidate, err := msg.ICECandidate()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s, ok := c.table.Get(from)
		if !ok {
			c.log.Debug("candidate for unknown peer", slog.String("op", op), slog.String("peer_id", from))
			return nil
		}
		s.HandleCandidate(candidate)
	default:
		return fmt.Errorf("%s: %w: %q", op, ErrUnexpectedSignal, msg.Type)
	}
	return nil
}

// PeerLeft closes the session with the departed member before returning.
func (c *Controller) PeerLeft(peerID string) {
	if s := c.table.Remove(peerID); s != nil {
		s.Close()
	}
}

func (c *Controller) TracksChanged(tracks []webrtc.TrackLocal) {
	for _, s := range c.table.List() {
		s.UpdateTracks(tracks)
	}
}

func (c *Controller) CloseAll() {
	for _, s := range c.table.Drain() {
		s.Close()
	}
}

func (c *Controller) Session(peerID string) (*Session, bool) {
	return c.table.Get(peerID)
}

func (c *Controller) Peers() []string {
	sessions := c.table.List()
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.remoteID)
	}
	return ids
}

func (c *Controller) SendFile(ctx context.Context, peerID, name string, r io.Reader, size int64) (string, error) {
	s, ok := c.table.Get(peerID)
	if !ok {
		return "", ErrUnknownPeer
	}
	return s.SendFile(ctx, name, r, size)
}

func (c *Controller) newSession(remoteID string, initiator bool) (*Session, error) {
	conn, err := c.factory.NewConn(remoteID)
	if err != nil {
		return nil, fmt.Errorf("new connection: %w", err)
	}

	var tracks []webrtc.TrackLocal
	if c.tracks != nil {
		tracks = c.tracks.Tracks()
	}

	s := NewSession(SessionConfig{
		LocalID:        c.LocalID(),
		RemoteID:       remoteID,
		Initiator:      initiator,
		Conn:           conn,
		Signaller:      c.signaller,
		Observer:       c.observer,
		Tracks:         tracks,
		ConnectTimeout: c.opts.ConnectTimeout,
		Transfer:       c.opts.Transfer,
		MaxFileSize:    c.opts.MaxFileSize,
		Log:            c.log,
		OnClosed: func(s *Session) {
			c.table.RemoveSession(s)
		},
	})

	if existing, added := c.table.Add(s); !added {
		s.Close()
		return existing, nil
	}
	return s, nil
}
