package peer

import (
	"sync"

	"github.com/pion/webrtc/v3"
)

// PionFactory builds connections on top of pion.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

func NewPionFactory(stunServers []string) *PionFactory {
	config := webrtc.Configuration{}
	if len(stunServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}
	return &PionFactory{
		api:    webrtc.NewAPI(),
		config: config,
	}
}

func (f *PionFactory) NewConn(string) (Conn, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	return &pionConn{pc: pc, senders: make(map[string]*webrtc.RTPSender)}, nil
}

type pionConn struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	senders map[string]*webrtc.RTPSender
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return offer, err
	}
	return offer, c.pc.SetLocalDescription(offer)
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return answer, err
	}
	return answer, c.pc.SetLocalDescription(answer)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) Rollback() error {
	return c.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

// SetTracks makes the sent tracks match tracks, removing senders whose track
// went away and adding the new ones.
func (c *pionConn) SetTracks(tracks []webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := make(map[string]webrtc.TrackLocal, len(tracks))
	for _, t := range tracks {
		want[t.ID()] = t
	}

	for id, sender := range c.senders {
		if _, ok := want[id]; ok {
			continue
		}
		if err := c.pc.RemoveTrack(sender); err != nil {
			return err
		}
		delete(c.senders, id)
	}

	for id, t := range want {
		if _, ok := c.senders[id]; ok {
			continue
		}
		sender, err := c.pc.AddTrack(t)
		if err != nil {
			return err
		}
		c.senders[id] = sender
		go drainRTCP(sender)
	}
	return nil
}

// drainRTCP keeps interceptors running for the sender.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (c *pionConn) CreateDataChannel(label string) (DataChannel, error) {
	dc, err := c.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return &pionDataChannel{DataChannel: dc}, nil
}

func (c *pionConn) OnICECandidate(f func(candidate *webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			f(nil)
			return
		}
		init := candidate.ToJSON()
		f(&init)
	})
}

func (c *pionConn) OnConnectionStateChange(f func(state webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(f)
}

func (c *pionConn) OnDataChannel(f func(dc DataChannel)) {
	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		f(&pionDataChannel{DataChannel: dc})
	})
}

func (c *pionConn) OnTrack(f func(track RemoteTrack)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f(track)
	})
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

type pionDataChannel struct {
	*webrtc.DataChannel
}

func (d *pionDataChannel) OnMessage(f func(data []byte)) {
	d.DataChannel.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(msg.Data)
	})
}
