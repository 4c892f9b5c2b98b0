package peer

import (
	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/pion/webrtc/v3"
)

//go:generate mockgen -source=signaller.go -destination=mocks/mock_signaller.go -package=mocks

// Signaller delivers envelopes to the relay. Send must not block on the
// network.
type Signaller interface {
	Send(msg *domain.SignalMessage) error
}

// TrackSource provides the current local track set.
type TrackSource interface {
	Tracks() []webrtc.TrackLocal
}
