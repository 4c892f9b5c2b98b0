package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/media"
	"github.com/immxrtalbeast/meshrelay/internal/peer"
	"github.com/immxrtalbeast/meshrelay/internal/signaling"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
	"golang.org/x/sync/errgroup"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrEmptyRoom    = errors.New("room id is required")
	ErrNotJoined    = errors.New("not in a room")
	ErrNoPeers      = errors.New("no connected peers")
)

type Options struct {
	Name       string
	WithCamera bool
	Peer       peer.Options
}

// Client is one participant: it owns the signaling transport, the local
// media and one peer session per room member.
type Client struct {
	transport signaling.Transport
	media     *media.Manager
	peers     *peer.Controller
	observer  Observer
	name      string
	camera    bool
	log       *slog.Logger

	done chan struct{}

	mu     sync.Mutex
	room   string
	closed bool
}

func New(transport signaling.Transport, factory peer.ConnFactory, capturer media.Capturer, observer Observer, opts Options, log *slog.Logger) *Client {
	if observer == nil {
		observer = NopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}

	manager := media.NewManager(capturer, log)
	c := &Client{
		transport: transport,
		media:     manager,
		peers:     peer.NewController(factory, transport, manager, observer, opts.Peer, log),
		observer:  observer,
		name:      opts.Name,
		camera:    opts.WithCamera,
		log:       log,
		done:      make(chan struct{}),
	}
	manager.OnTracksChanged(c.peers.TracksChanged)

	go c.run()
	return c
}

// LocalID is empty until the relay has welcomed this participant.
func (c *Client) LocalID() string {
	return c.peers.LocalID()
}

func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Media() *media.Manager {
	return c.media
}

func (c *Client) Peers() []string {
	return c.peers.Peers()
}

func (c *Client) Session(peerID string) (*peer.Session, bool) {
	return c.peers.Session(peerID)
}

// Done is closed once the signaling transport has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Join opens local media and asks the relay for a seat in room. Sessions of
// a previous room are closed first.
func (c *Client) Join(room string) error {
	const op = "client.join"
	if room == "" {
		return ErrEmptyRoom
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	previous := c.room
	c.room = room
	c.mu.Unlock()

	if previous != "" && previous != room {
		c.peers.CloseAll()
	}

	if err := c.media.Start(c.camera); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.transport.Send(&domain.SignalMessage{Type: domain.KindJoinRoom, Room: room}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("joining room", slog.String("op", op), slog.String("room", room))
	return nil
}

// Leave tells the relay without waiting, closes every session and releases
// local media.
func (c *Client) Leave() {
	const op = "client.leave"

	c.mu.Lock()
	room := c.room
	c.room = ""
	c.mu.Unlock()

	if room != "" {
		if err := c.transport.Send(&domain.SignalMessage{Type: domain.KindLeave}); err != nil {
			c.log.Debug("leave not sent", slog.String("op", op), sl.Err(err))
		}
	}
	c.peers.CloseAll()
	if err := c.media.Close(); err != nil {
		c.log.Warn("failed to release media", slog.String("op", op), sl.Err(err))
	}
}

// Close leaves the room and shuts the transport down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Leave()
	err := c.transport.Close()
	<-c.done
	return err
}

func (c *Client) SendChat(content string) error {
	const op = "client.send_chat"

	if c.Room() == "" {
		return ErrNotJoined
	}
	msg := domain.NewChatMessage(c.name, content)
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	envelope, err := domain.NewChatEnvelope(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.transport.Send(envelope); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) SendFile(ctx context.Context, peerID, name string, r io.Reader, size int64) (string, error) {
	return c.peers.SendFile(ctx, peerID, name, r, size)
}

// BroadcastFile sends the same file to every peer whose link is up and
// returns the job id used for each of them.
func (c *Client) BroadcastFile(ctx context.Context, name string, r io.ReaderAt, size int64) (map[string]string, error) {
	const op = "client.broadcast_file"

	var targets []string
	for _, id := range c.peers.Peers() {
		if s, ok := c.peers.Session(id); ok && s.State().Established() {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoPeers
	}

	var (
		mu   sync.Mutex
		jobs = make(map[string]string, len(targets))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range targets {
		id := id
		g.Go(func() error {
			jobID, err := c.peers.SendFile(gctx, id, name, io.NewSectionReader(r, 0, size), size)
			if err != nil {
				return fmt.Errorf("peer %s: %w", id, err)
			}
			mu.Lock()
			jobs[id] = jobID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return jobs, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

func (c *Client) SetMuted(muted bool) error {
	return c.media.SetMuted(muted)
}

func (c *Client) SetCamera(on bool) error {
	return c.media.SetCamera(on)
}

func (c *Client) StartScreenShare() error {
	return c.media.StartScreenShare()
}

func (c *Client) StopScreenShare() error {
	return c.media.StopScreenShare()
}

func (c *Client) run() {
	defer close(c.done)
	for msg := range c.transport.Incoming() {
		c.dispatch(msg)
	}
	c.peers.CloseAll()
}

func (c *Client) dispatch(msg *domain.SignalMessage) {
	const op = "client.dispatch"

	switch msg.Type {
	case domain.KindWelcome:
		c.peers.SetLocalID(msg.TargetID)
		c.log.Debug("welcomed", slog.String("op", op), slog.String("participant_id", msg.TargetID))
	case domain.KindAllUsers:
		if !c.inRoom(msg) {
			return
		}
		c.observer.OnRoster(msg.Users)
		c.peers.HandleRoster(msg.Users)
	case domain.KindOffer, domain.KindAnswer, domain.KindICE:
		if !c.inRoom(msg) {
			c.log.Debug("signal outside room dropped", slog.String("op", op),
				slog.String("from", msg.SenderID), slog.String("room", msg.Room))
			return
		}
		if err := c.peers.HandleSignal(msg); err != nil {
			c.log.Warn("bad signal", slog.String("op", op), slog.String("from", msg.SenderID), sl.Err(err))
		}
	case domain.KindUserLeft:
		if !c.inRoom(msg) {
			return
		}
		c.peers.PeerLeft(msg.SenderID)
		c.observer.OnPeerLeft(msg.SenderID)
	case domain.KindChatMessage:
		if !c.inRoom(msg) {
			return
		}
		chat, err := msg.ChatMessage()
		if err == nil {
			err = chat.Validate()
		}
		if err != nil {
			c.log.Debug("chat dropped", slog.String("op", op), slog.String("from", msg.SenderID), sl.Err(err))
			return
		}
		c.observer.OnChat(chat)
	case domain.KindError:
		var payload domain.ErrorPayload
		_ = json.Unmarshal(msg.Payload, &payload)
		c.log.Warn("relay error", slog.String("op", op), slog.String("error", payload.Error))
	default:
		c.log.Debug("unknown envelope", slog.String("op", op), slog.String("type", string(msg.Type)))
	}
}

// inRoom reports whether a room-scoped envelope belongs to the room the
// client currently occupies. Envelopes the relay left unstamped are accepted
// while the client is in a room.
func (c *Client) inRoom(msg *domain.SignalMessage) bool {
	room := c.Room()
	return room != "" && (msg.Room == "" || msg.Room == room)
}
