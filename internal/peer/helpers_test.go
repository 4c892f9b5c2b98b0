package peer_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/peer"
	"github.com/immxrtalbeast/meshrelay/internal/peer/peertest"
	"github.com/immxrtalbeast/meshrelay/internal/transfer"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bus routes envelopes between controllers the way the relay does, and can
// hold them back to force races.
type bus struct {
	mu     sync.Mutex
	ctrls  map[string]*peer.Controller
	sent   []domain.SignalMessage
	paused bool
	queue  []domain.SignalMessage
}

func newBus() *bus {
	return &bus{ctrls: make(map[string]*peer.Controller)}
}

type busSignaller struct {
	bus  *bus
	from string
}

func (s busSignaller) Send(msg *domain.SignalMessage) error {
	m := *msg
	m.SenderID = s.from
	s.bus.mu.Lock()
	s.bus.sent = append(s.bus.sent, m)
	if s.bus.paused {
		s.bus.queue = append(s.bus.queue, m)
		s.bus.mu.Unlock()
		return nil
	}
	s.bus.mu.Unlock()
	s.bus.deliver(m)
	return nil
}

func (b *bus) deliver(m domain.SignalMessage) {
	b.mu.Lock()
	ctrl := b.ctrls[m.TargetID]
	b.mu.Unlock()
	if ctrl != nil {
		_ = ctrl.HandleSignal(&m)
	}
}

func (b *bus) pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
}

func (b *bus) release() {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.paused = false
	b.mu.Unlock()

	for _, m := range queue {
		b.deliver(m)
	}
}

func (b *bus) count(kind domain.Kind, from, to string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.sent {
		if m.Type == kind && m.SenderID == from && m.TargetID == to {
			n++
		}
	}
	return n
}

type recorder struct {
	mu        sync.Mutex
	failures  map[string]error
	files     []*transfer.File
	abandoned map[string][]string
	opened    map[string]bool
	tracks    map[string][]string
}

func newRecorder() *recorder {
	return &recorder{
		failures:  make(map[string]error),
		abandoned: make(map[string][]string),
		opened:    make(map[string]bool),
		tracks:    make(map[string][]string),
	}
}

func (r *recorder) OnPeerState(string, peer.State) {}

func (r *recorder) OnPeerFailed(peerID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[peerID] = err
}

func (r *recorder) OnRemoteTrack(peerID string, track peer.RemoteTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[peerID] = append(r.tracks[peerID], track.ID())
}

func (r *recorder) OnDataChannelOpen(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened[peerID] = true
}

func (r *recorder) OnFile(file *transfer.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, file)
}

func (r *recorder) OnTransferAbandoned(peerID, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned[peerID] = append(r.abandoned[peerID], jobID)
}

func (r *recorder) OnTransferError(string, error) {}

func (r *recorder) failure(peerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[peerID]
}

func (r *recorder) isOpen(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened[peerID]
}

func (r *recorder) receivedFiles() []*transfer.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*transfer.File(nil), r.files...)
}

func (r *recorder) abandonedJobs(peerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.abandoned[peerID]...)
}

type mesh struct {
	net   *peertest.Network
	bus   *bus
	ctrls map[string]*peer.Controller
	obs   map[string]*recorder
}

func newMesh() *mesh {
	return &mesh{
		net:   peertest.NewNetwork(),
		bus:   newBus(),
		ctrls: make(map[string]*peer.Controller),
		obs:   make(map[string]*recorder),
	}
}

func (m *mesh) add(id string, opts peer.Options) *peer.Controller {
	obs := newRecorder()
	ctrl := peer.NewController(m.net.Factory(id), busSignaller{bus: m.bus, from: id}, nil, obs, opts, discardLogger())
	ctrl.SetLocalID(id)

	m.bus.mu.Lock()
	m.bus.ctrls[id] = ctrl
	m.bus.mu.Unlock()
	m.ctrls[id] = ctrl
	m.obs[id] = obs
	return ctrl
}

// join adds id and hands it the roster of everyone added before.
func (m *mesh) join(t *testing.T, id string, roster ...string) *peer.Controller {
	t.Helper()
	ctrl := m.add(id, peer.Options{ConnectTimeout: 5 * time.Second})
	ctrl.HandleRoster(roster)
	return ctrl
}

func requireState(t *testing.T, ctrl *peer.Controller, peerID string, want peer.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := ctrl.Session(peerID)
		return ok && s.State() == want
	}, 3*time.Second, 5*time.Millisecond, "peer %s never reached %s", peerID, want)
}

func newTrack(t *testing.T, kind string) webrtc.TrackLocal {
	t.Helper()
	mime := webrtc.MimeTypeOpus
	if kind == "video" {
		mime = webrtc.MimeTypeVP8
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, kind+"-"+t.Name(), "stream")
	require.NoError(t, err)
	return track
}
