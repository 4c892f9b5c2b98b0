package peer

import (
	"github.com/immxrtalbeast/meshrelay/internal/transfer"
	"github.com/pion/webrtc/v3"
)

// Conn is one peer connection. CreateOffer and CreateAnswer also apply the
// result as the local description.
type Conn interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	Rollback() error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	SetTracks(tracks []webrtc.TrackLocal) error
	CreateDataChannel(label string) (DataChannel, error)
	OnICECandidate(f func(candidate *webrtc.ICECandidateInit))
	OnConnectionStateChange(f func(state webrtc.PeerConnectionState))
	OnDataChannel(f func(dc DataChannel))
	OnTrack(f func(track RemoteTrack))
	Close() error
}

type DataChannel interface {
	transfer.Channel
	Label() string
	OnOpen(f func())
	OnClose(f func())
	OnMessage(f func(data []byte))
	Close() error
}

// RemoteTrack is satisfied by *webrtc.TrackRemote.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

type ConnFactory interface {
	NewConn(remoteID string) (Conn, error)
}

const DataChannelLabel = "file-transfer"
