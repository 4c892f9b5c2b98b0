// Package peertest provides an in-memory stand-in for peer connections.
// Two conns created for the same pair connect once both sides have applied
// a local and a remote description.
package peertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/immxrtalbeast/meshrelay/internal/peer"
	"github.com/pion/webrtc/v3"
)

var ErrClosed = errors.New("peertest: conn closed")

type Network struct {
	mu    sync.Mutex
	conns map[string]*Conn

	// Hold keeps every conn from connecting.
	Hold bool
}

func NewNetwork() *Network {
	return &Network{conns: make(map[string]*Conn)}
}

// Factory returns a peer.ConnFactory for the participant localID.
func (n *Network) Factory(localID string) peer.ConnFactory {
	return factory{net: n, local: localID}
}

// Conn returns the latest conn localID opened towards remoteID.
func (n *Network) Conn(localID, remoteID string) (*Conn, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.conns[key(localID, remoteID)]
	return c, ok
}

type factory struct {
	net   *Network
	local string
}

func (f factory) NewConn(remoteID string) (peer.Conn, error) {
	return f.net.NewConn(f.local, remoteID), nil
}

func (n *Network) NewConn(localID, remoteID string) *Conn {
	c := &Conn{net: n, local: localID, remote: remoteID}
	n.mu.Lock()
	n.conns[key(localID, remoteID)] = c
	n.mu.Unlock()
	return c
}

func key(local, remote string) string {
	return local + "->" + remote
}

// Conn implements peer.Conn and records what the session did to it.
type Conn struct {
	net    *Network
	local  string
	remote string

	mu          sync.Mutex
	offers      int
	answers     int
	rollbacks   int
	localDesc   *webrtc.SessionDescription
	remoteDesc  *webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	tracks      []string
	channels    []*DataChannel
	connected   bool
	closed      bool
	onCandidate func(*webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
	onChannel   func(peer.DataChannel)
	onTrack     func(peer.RemoteTrack)
}

func (c *Conn) CreateOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return webrtc.SessionDescription{}, ErrClosed
	}
	c.offers++
	desc := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  fmt.Sprintf("offer %s->%s #%d tracks=%v", c.local, c.remote, c.offers, c.tracks),
	}
	c.localDesc = &desc
	c.mu.Unlock()

	c.gather()
	c.net.maybeConnect(c)
	return desc, nil
}

func (c *Conn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return webrtc.SessionDescription{}, ErrClosed
	}
	if c.remoteDesc == nil || c.remoteDesc.Type != webrtc.SDPTypeOffer {
		c.mu.Unlock()
		return webrtc.SessionDescription{}, errors.New("peertest: no remote offer")
	}
	c.answers++
	desc := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  fmt.Sprintf("answer %s->%s #%d", c.local, c.remote, c.answers),
	}
	c.localDesc = &desc
	c.mu.Unlock()

	c.gather()
	c.net.maybeConnect(c)
	return desc, nil
}

func (c *Conn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if desc.Type == webrtc.SDPTypeAnswer && (c.localDesc == nil || c.localDesc.Type != webrtc.SDPTypeOffer) {
		c.mu.Unlock()
		return errors.New("peertest: answer without local offer")
	}
	c.remoteDesc = &desc
	c.mu.Unlock()

	c.net.maybeConnect(c)
	return nil
}

func (c *Conn) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollbacks++
	c.localDesc = nil
	return nil
}

// AddICECandidate fails when no remote description is set, like a real
// connection.
func (c *Conn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteDesc == nil {
		return errors.New("peertest: candidate before remote description")
	}
	c.candidates = append(c.candidates, candidate)
	return nil
}

func (c *Conn) SetTracks(tracks []webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = c.tracks[:0]
	for _, t := range tracks {
		c.tracks = append(c.tracks, t.ID())
	}
	return nil
}

func (c *Conn) CreateDataChannel(label string) (peer.DataChannel, error) {
	dc := newDataChannel(label)
	c.mu.Lock()
	c.channels = append(c.channels, dc)
	c.mu.Unlock()
	return dc, nil
}

func (c *Conn) OnICECandidate(f func(*webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCandidate = f
}

func (c *Conn) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = f
}

func (c *Conn) OnDataChannel(f func(peer.DataChannel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChannel = f
}

func (c *Conn) OnTrack(f func(peer.RemoteTrack)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = f
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	channels := append([]*DataChannel(nil), c.channels...)
	c.mu.Unlock()

	for _, dc := range channels {
		_ = dc.Close()
	}
	return nil
}

// Fail reports a failed transport to the session.
func (c *Conn) Fail() {
	c.emitState(webrtc.PeerConnectionStateFailed)
}

func (c *Conn) Offers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offers
}

func (c *Conn) Answers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers
}

func (c *Conn) Rollbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbacks
}

func (c *Conn) Candidates() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.candidates...)
}

func (c *Conn) Tracks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.tracks...)
}

// Channels returns the data channels this side created.
func (c *Conn) Channels() []*DataChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*DataChannel(nil), c.channels...)
}

func (c *Conn) RemoteDescription() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteDesc
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// EmitTrack delivers a remote track to the session.
func (c *Conn) EmitTrack(track peer.RemoteTrack) {
	c.mu.Lock()
	f := c.onTrack
	c.mu.Unlock()
	if f != nil {
		f(track)
	}
}

// gather emits one host candidate, the way a real agent does after the
// local description is applied.
func (c *Conn) gather() {
	c.mu.Lock()
	f := c.onCandidate
	n := c.offers + c.answers
	c.mu.Unlock()
	if f == nil {
		return
	}
	mid := "0"
	candidate := webrtc.ICECandidateInit{
		Candidate: fmt.Sprintf("candidate:%d 1 udp 2130706431 127.0.0.1 %d typ host", n, 50000+n),
		SDPMid:    &mid,
	}
	go f(&candidate)
}

func (c *Conn) emitState(state webrtc.PeerConnectionState) {
	c.mu.Lock()
	f := c.onState
	c.mu.Unlock()
	if f != nil {
		go f(state)
	}
}

func (c *Conn) ready() bool {
	return !c.closed && c.localDesc != nil && c.remoteDesc != nil
}

func (n *Network) maybeConnect(c *Conn) {
	n.mu.Lock()
	if n.Hold {
		n.mu.Unlock()
		return
	}
	partner, ok := n.conns[key(c.remote, c.local)]
	n.mu.Unlock()
	if !ok {
		return
	}

	first, second := c, partner
	if first.local > second.local {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	if first.connected || !first.ready() || !second.ready() {
		second.mu.Unlock()
		first.mu.Unlock()
		return
	}
	first.connected = true
	second.connected = true
	second.mu.Unlock()
	first.mu.Unlock()

	c.emitState(webrtc.PeerConnectionStateConnected)
	partner.emitState(webrtc.PeerConnectionStateConnected)
	go pairChannels(c, partner)
	go pairChannels(partner, c)
}

// pairChannels delivers every channel opened on from to the far side and
// opens both ends.
func pairChannels(from, to *Conn) {
	from.mu.Lock()
	channels := append([]*DataChannel(nil), from.channels...)
	from.mu.Unlock()

	to.mu.Lock()
	onChannel := to.onChannel
	to.mu.Unlock()

	for _, local := range channels {
		if local.paired() {
			continue
		}
		remote := newDataChannel(local.label)
		local.link(remote)
		remote.link(local)
		if onChannel != nil {
			onChannel(remote)
		}
		local.open()
		remote.open()
	}
}

var _ peer.Conn = (*Conn)(nil)
