package peer

import "github.com/immxrtalbeast/meshrelay/internal/transfer"

// Observer receives session events. Callbacks run on session goroutines and
// must not block for long.
type Observer interface {
	OnPeerState(peerID string, state State)
	OnPeerFailed(peerID string, err error)
	OnRemoteTrack(peerID string, track RemoteTrack)
	OnDataChannelOpen(peerID string)
	OnFile(file *transfer.File)
	OnTransferAbandoned(peerID, jobID string)
	OnTransferError(peerID string, err error)
}

type NopObserver struct{}

func (NopObserver) OnPeerState(string, State)          {}
func (NopObserver) OnPeerFailed(string, error)         {}
func (NopObserver) OnRemoteTrack(string, RemoteTrack)  {}
func (NopObserver) OnDataChannelOpen(string)           {}
func (NopObserver) OnFile(*transfer.File)              {}
func (NopObserver) OnTransferAbandoned(string, string) {}
func (NopObserver) OnTransferError(string, error)      {}
