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
	ErrSessionClosed    = errors.New("peer session closed")
	ErrConnectTimeout   = errors.New("peer did not connect in time")
	ErrConnectionFailed = errors.New("peer connection failed")
	ErrNoDataChannel    = errors.New("data channel not open")
)

const (
	DefaultConnectTimeout = 20 * time.Second
	inboxSize             = 64
)

type eventKind int

const (
	evStart eventKind = iota
	evRemoteOffer
	evRemoteAnswer
	evRemoteCandidate
	evLocalCandidate
	evConnState
	evTracks
	evTimeout
)

type event struct {
	kind      eventKind
	desc      webrtc.SessionDescription
	candidate webrtc.ICECandidateInit
	connState webrtc.PeerConnectionState
	tracks    []webrtc.TrackLocal
}

type SessionConfig struct {
	LocalID        string
	RemoteID       string
	Initiator      bool
	Conn           Conn
	Signaller      Signaller
	Observer       Observer
	Tracks         []webrtc.TrackLocal
	ConnectTimeout time.Duration
	Transfer       transfer.Options
	MaxFileSize    int64
	Log            *slog.Logger
	OnClosed       func(*Session)
}

// Session is the link to one remote participant. All negotiation runs on
// the session's own goroutine, fed through its inbox.
type Session struct {
	localID   string
	remoteID  string
	conn      Conn
	signaller Signaller
	observer  Observer
	log       *slog.Logger
	onClosed  func(*Session)

	transferOpts transfer.Options
	reassembler  *transfer.Reassembler

	inbox chan event
	done  chan struct{}
	timer *time.Timer

	mu            sync.Mutex
	initiator     bool
	state         State
	remoteDescSet bool
	localDescSent bool
	transportUp   bool
	tracksDirty   bool
	pending       []webrtc.ICECandidateInit
	outgoing      []webrtc.ICECandidateInit
	tracks        []webrtc.TrackLocal
	negotiated    []string
	notes         []func()

	dcMu   sync.RWMutex
	dc     DataChannel
	sender *transfer.Sender
	dcOpen bool
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	s := &Session{
		localID:      cfg.LocalID,
		remoteID:     cfg.RemoteID,
		initiator:    cfg.Initiator,
		conn:         cfg.Conn,
		signaller:    cfg.Signaller,
		observer:     cfg.Observer,
		log:          cfg.Log.With(slog.String("peer_id", cfg.RemoteID)),
		onClosed:     cfg.OnClosed,
		transferOpts: cfg.Transfer,
		reassembler:  transfer.NewReassembler(cfg.MaxFileSize),
		inbox:        make(chan event, inboxSize),
		done:         make(chan struct{}),
		state:        StateIdle,
		tracks:       cfg.Tracks,
	}

	s.conn.OnICECandidate(func(candidate *webrtc.ICECandidateInit) {
		if candidate == nil {
			return
		}
		s.post(event{kind: evLocalCandidate, candidate: *candidate})
	})
	s.conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.post(event{kind: evConnState, connState: state})
	})
	s.conn.OnDataChannel(s.attachDataChannel)
	s.conn.OnTrack(func(track RemoteTrack) {
		s.observer.OnRemoteTrack(s.remoteID, track)
	})

	s.timer = time.AfterFunc(cfg.ConnectTimeout, func() {
		s.post(event{kind: evTimeout})
	})

	go s.run()
	return s
}

func (s *Session) RemoteID() string {
	return s.remoteID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NegotiatedTracks returns the ids of the local tracks in the last offer or
// answer this side produced.
func (s *Session) NegotiatedTracks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.negotiated...)
}

// PendingTransfers counts inbound files from the remote peer that are still
// being reassembled.
func (s *Session) PendingTransfers() int {
	return s.reassembler.Pending(s.remoteID)
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start sends the initial offer. Only the session created from a roster
// entry calls it.
func (s *Session) Start() {
	s.post(event{kind: evStart})
}

func (s *Session) HandleOffer(desc webrtc.SessionDescription) {
	s.post(event{kind: evRemoteOffer, desc: desc})
}

func (s *Session) HandleAnswer(desc webrtc.SessionDescription) {
	s.post(event{kind: evRemoteAnswer, desc: desc})
}

func (s *Session) HandleCandidate(candidate webrtc.ICECandidateInit) {
	s.post(event{kind: evRemoteCandidate, candidate: candidate})
}

func (s *Session) UpdateTracks(tracks []webrtc.TrackLocal) {
	s.post(event{kind: evTracks, tracks: tracks})
}

// Close tears the session down before returning. It is safe to call from
// observer callbacks and more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.closeLocked()
	notes := s.takeNotesLocked()
	s.mu.Unlock()

	runNotes(notes)
}

func (s *Session) SendFile(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	select {
	case <-s.done:
		return "", ErrSessionClosed
	default:
	}

	s.dcMu.RLock()
	sender, open := s.sender, s.dcOpen
	s.dcMu.RUnlock()
	if sender == nil || !open {
		return "", ErrNoDataChannel
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	return sender.Send(ctx, name, r, size)
}

func (s *Session) post(ev event) bool {
	select {
	case s.inbox <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.inbox:
			s.mu.Lock()
			if s.state != StateClosed {
				s.handle(ev)
			}
			notes := s.takeNotesLocked()
			s.mu.Unlock()

			runNotes(notes)
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evStart:
		s.startLocked()
	case evRemoteOffer:
		s.remoteOfferLocked(ev.desc)
	case evRemoteAnswer:
		s.remoteAnswerLocked(ev.desc)
	case evRemoteCandidate:
		s.remoteCandidateLocked(ev.candidate)
	case evLocalCandidate:
		s.localCandidateLocked(ev.candidate)
	case evConnState:
		s.connStateLocked(ev.connState)
	case evTracks:
		s.tracksLocked(ev.tracks)
	case evTimeout:
		if !s.state.Established() {
			s.failLocked(ErrConnectTimeout)
		}
	}
}

func (s *Session) startLocked() {
	if s.state != StateIdle || !s.initiator {
		return
	}
	s.setStateLocked(StateOffering)

	dc, err := s.conn.CreateDataChannel(DataChannelLabel)
	if err != nil {
		s.failLocked(fmt.Errorf("create data channel: %w", err))
		return
	}
	s.attachDataChannel(dc)

	if err := s.sendOfferLocked(); err != nil {
		s.failLocked(err)
	}
}

func (s *Session) remoteOfferLocked(desc webrtc.SessionDescription) {
	switch s.state {
	case StateIdle:
		// first offer wins when no local offer went out yet
		s.initiator = false
		s.setStateLocked(StateAnswerPending)
		if err := s.answerLocked(desc); err != nil {
			s.failLocked(err)
			return
		}
		s.setStateLocked(StateConnecting)
		if s.transportUp {
			s.enterConnectedLocked()
		}
	case StateOffering:
		s.log.Debug("ignoring offer while initial offer is pending")
	case StateConnecting, StateConnected:
		if err := s.answerLocked(desc); err != nil {
			s.failLocked(err)
		}
	case StateRenegotiating:
		if s.initiator {
			s.log.Debug("renegotiation glare, keeping local offer")
			return
		}
		s.log.Debug("renegotiation glare, rolling back local offer")
		if err := s.conn.Rollback(); err != nil {
			s.failLocked(fmt.Errorf("rollback: %w", err))
			return
		}
		if err := s.answerLocked(desc); err != nil {
			s.failLocked(err)
			return
		}
		s.setStateLocked(StateConnected)
		s.renegotiateLocked()
	}
}

func (s *Session) remoteAnswerLocked(desc webrtc.SessionDescription) {
	switch s.state {
	case StateOffering:
		if err := s.applyRemoteLocked(desc); err != nil {
			s.failLocked(err)
			return
		}
		s.setStateLocked(StateConnecting)
		if s.transportUp {
			s.enterConnectedLocked()
		}
	case StateRenegotiating:
		if err := s.applyRemoteLocked(desc); err != nil {
			s.failLocked(err)
			return
		}
		s.enterConnectedLocked()
	default:
		s.log.Debug("ignoring unexpected answer", slog.String("state", s.state.String()))
	}
}

func (s *Session) remoteCandidateLocked(candidate webrtc.ICECandidateInit) {
	if !s.remoteDescSet {
		s.pending = append(s.pending, candidate)
		return
	}
	if err := s.conn.AddICECandidate(candidate); err != nil {
		s.log.Debug("failed to add candidate", sl.Err(err))
	}
}

func (s *Session) localCandidateLocked(candidate webrtc.ICECandidateInit) {
	if !s.localDescSent {
		s.outgoing = append(s.outgoing, candidate)
		return
	}
	s.sendCandidateLocked(candidate)
}

func (s *Session) connStateLocked(state webrtc.PeerConnectionState) {
	s.log.Debug("connection state", slog.String("conn_state", state.String()))

	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.transportUp = true
		if s.state == StateConnecting {
			s.enterConnectedLocked()
		}
	case webrtc.PeerConnectionStateDisconnected:
		s.transportUp = false
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.failLocked(ErrConnectionFailed)
	}
}

func (s *Session) tracksLocked(tracks []webrtc.TrackLocal) {
	s.tracks = tracks
	if s.state != StateConnected {
		s.tracksDirty = true
		return
	}
	if sameIDs(trackIDs(tracks), s.negotiated) {
		return
	}
	s.renegotiateLocked()
}

func (s *Session) enterConnectedLocked() {
	s.setStateLocked(StateConnected)
	s.timer.Stop()

	if s.tracksDirty {
		s.tracksDirty = false
		if !sameIDs(trackIDs(s.tracks), s.negotiated) {
			s.renegotiateLocked()
		}
	}
}

func (s *Session) renegotiateLocked() {
	s.tracksDirty = false
	s.setStateLocked(StateRenegotiating)
	if err := s.sendOfferLocked(); err != nil {
		s.failLocked(err)
	}
}

func (s *Session) sendOfferLocked() error {
	if err := s.conn.SetTracks(s.tracks); err != nil {
		return fmt.Errorf("set tracks: %w", err)
	}
	offer, err := s.conn.CreateOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.sendDescriptionLocked(domain.KindOffer, offer); err != nil {
		return err
	}
	s.negotiated = trackIDs(s.tracks)
	return nil
}

func (s *Session) answerLocked(offer webrtc.SessionDescription) error {
	if err := s.applyRemoteLocked(offer); err != nil {
		return err
	}
	if err := s.conn.SetTracks(s.tracks); err != nil {
		return fmt.Errorf("set tracks: %w", err)
	}
	answer, err := s.conn.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.sendDescriptionLocked(domain.KindAnswer, answer); err != nil {
		return err
	}
	s.negotiated = trackIDs(s.tracks)
	return nil
}

// applyRemoteLocked sets the remote description and then flushes the
// candidates that arrived before it, in arrival order.
func (s *Session) applyRemoteLocked(desc webrtc.SessionDescription) error {
	if err := s.conn.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote %s: %w", desc.Type, err)
	}
	s.remoteDescSet = true

	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if err := s.conn.AddICECandidate(c); err != nil {
			s.log.Debug("failed to add queued candidate", sl.Err(err))
		}
	}
	return nil
}

func (s *Session) sendDescriptionLocked(kind domain.Kind, desc webrtc.SessionDescription) error {
	msg, err := domain.NewSDPMessage(kind, s.remoteID, desc)
	if err != nil {
		return err
	}
	if err := s.signaller.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}

	if !s.localDescSent {
		s.localDescSent = true
		outgoing := s.outgoing
		s.outgoing = nil
		for _, c := range outgoing {
			s.sendCandidateLocked(c)
		}
	}
	return nil
}

func (s *Session) sendCandidateLocked(candidate webrtc.ICECandidateInit) {
	msg, err := domain.NewICEMessage(s.remoteID, candidate)
	if err != nil {
		s.log.Debug("failed to encode candidate", sl.Err(err))
		return
	}
	if err := s.signaller.Send(msg); err != nil {
		s.log.Debug("failed to send candidate", sl.Err(err))
	}
}

func (s *Session) failLocked(err error) {
	if s.state == StateClosed {
		return
	}
	s.log.Info("peer session failed", sl.Err(err))
	s.closeLocked()
	s.note(func() { s.observer.OnPeerFailed(s.remoteID, err) })
}

func (s *Session) closeLocked() {
	if s.state == StateClosed {
		return
	}
	s.setStateLocked(StateClosed)
	s.timer.Stop()
	s.pending = nil
	s.outgoing = nil
	close(s.done)

	s.dcMu.Lock()
	dc := s.dc
	s.dc, s.sender, s.dcOpen = nil, nil, false
	s.dcMu.Unlock()
	if dc != nil {
		_ = dc.Close()
	}
	if err := s.conn.Close(); err != nil {
		s.log.Debug("failed to close connection", sl.Err(err))
	}

	for _, jobID := range s.reassembler.Abandon(s.remoteID) {
		jobID := jobID
		s.note(func() { s.observer.OnTransferAbandoned(s.remoteID, jobID) })
	}
	if s.onClosed != nil {
		s.note(func() { s.onClosed(s) })
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.log.Debug("peer state", slog.String("from", s.state.String()), slog.String("to", state.String()))
	s.state = state
	s.note(func() { s.observer.OnPeerState(s.remoteID, state) })
}

func (s *Session) note(f func()) {
	s.notes = append(s.notes, f)
}

func (s *Session) takeNotesLocked() []func() {
	notes := s.notes
	s.notes = nil
	return notes
}

func runNotes(notes []func()) {
	for _, f := range notes {
		f()
	}
}

func (s *Session) attachDataChannel(dc DataChannel) {
	if dc.Label() != DataChannelLabel {
		s.log.Debug("ignoring data channel", slog.String("label", dc.Label()))
		return
	}

	s.dcMu.Lock()
	s.dc = dc
	s.sender = transfer.NewSender(dc, s.transferOpts)
	s.dcMu.Unlock()

	dc.OnOpen(func() {
		s.dcMu.Lock()
		s.dcOpen = s.dc == dc
		s.dcMu.Unlock()
		s.observer.OnDataChannelOpen(s.remoteID)
	})
	dc.OnClose(func() {
		s.dcMu.Lock()
		if s.dc == dc {
			s.dcOpen = false
		}
		s.dcMu.Unlock()
	})
	dc.OnMessage(s.receive)
}

func (s *Session) receive(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	file, err := s.reassembler.Accept(s.remoteID, data)
	if err != nil {
		s.observer.OnTransferError(s.remoteID, err)
		return
	}
	if file != nil {
		s.observer.OnFile(file)
	}
}

func trackIDs(tracks []webrtc.TrackLocal) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID())
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
