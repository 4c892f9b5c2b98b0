package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportPolling   Transport = "polling"
)

// Participant is one relay connection. Its ID is assigned by the relay at
// connect time and is the only identity the relay knows about.
type Participant struct {
	ID          string
	Transport   Transport
	ConnectedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
	events   chan SignalMessage
}

func NewParticipant(transport Transport, queueSize int) *Participant {
	if queueSize <= 0 {
		queueSize = 16
	}
	now := time.Now().UTC()
	return &Participant{
		ID:          uuid.New().String(),
		Transport:   transport,
		ConnectedAt: now,
		lastSeen:    now,
		events:      make(chan SignalMessage, queueSize),
	}
}

func (p *Participant) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = time.Now().UTC()
}

func (p *Participant) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Events is closed once the participant is disconnected.
func (p *Participant) Events() <-chan SignalMessage {
	return p.events
}

// EnqueueEvent never blocks. It reports false when the queue is full or the
// participant is already gone.
func (p *Participant) EnqueueEvent(event SignalMessage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	select {
	case p.events <- event:
		return true
	default:
		return false
	}
}

func (p *Participant) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.events)
}

func (p *Participant) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
