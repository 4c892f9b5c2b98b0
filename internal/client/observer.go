package client

import (
	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/peer"
)

// Observer receives room-level events on top of the per-peer ones.
type Observer interface {
	peer.Observer
	OnRoster(users []string)
	OnPeerLeft(peerID string)
	OnChat(msg domain.ChatMessage)
}

type NopObserver struct {
	peer.NopObserver
}

func (NopObserver) OnRoster([]string)          {}
func (NopObserver) OnPeerLeft(string)          {}
func (NopObserver) OnChat(domain.ChatMessage) {}
