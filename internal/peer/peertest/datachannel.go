package peertest

import (
	"sync"

	"github.com/immxrtalbeast/meshrelay/internal/peer"
)

// DataChannel delivers sent messages to its linked end synchronously.
type DataChannel struct {
	label string

	mu        sync.Mutex
	peer      *DataChannel
	isOpen    bool
	closed    bool
	buffered  uint64
	threshold uint64
	onOpen    func()
	onClose   func()
	onMessage func([]byte)
	onLow     func()
}

func newDataChannel(label string) *DataChannel {
	return &DataChannel{label: label}
}

func (d *DataChannel) Label() string {
	return d.label
}

func (d *DataChannel) Send(data []byte) error {
	d.mu.Lock()
	if d.closed || !d.isOpen {
		d.mu.Unlock()
		return ErrClosed
	}
	remote := d.peer
	d.mu.Unlock()

	if remote == nil {
		return ErrClosed
	}
	remote.deliver(append([]byte(nil), data...))
	return nil
}

func (d *DataChannel) deliver(data []byte) {
	d.mu.Lock()
	f := d.onMessage
	closed := d.closed
	d.mu.Unlock()
	if f != nil && !closed {
		f(data)
	}
}

func (d *DataChannel) BufferedAmount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffered
}

func (d *DataChannel) SetBufferedAmountLowThreshold(th uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = th
}

func (d *DataChannel) OnBufferedAmountLow(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLow = f
}

func (d *DataChannel) OnOpen(f func()) {
	d.mu.Lock()
	open := d.isOpen
	d.onOpen = f
	d.mu.Unlock()
	if open {
		go f()
	}
}

func (d *DataChannel) OnClose(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = f
}

func (d *DataChannel) OnMessage(f func([]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onMessage = f
}

func (d *DataChannel) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.isOpen = false
	f := d.onClose
	remote := d.peer
	d.mu.Unlock()

	if f != nil {
		f()
	}
	if remote != nil {
		_ = remote.Close()
	}
	return nil
}

// Closed reports whether either end closed the channel.
func (d *DataChannel) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *DataChannel) link(remote *DataChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peer = remote
}

func (d *DataChannel) paired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peer != nil
}

func (d *DataChannel) open() {
	d.mu.Lock()
	if d.closed || d.isOpen {
		d.mu.Unlock()
		return
	}
	d.isOpen = true
	f := d.onOpen
	d.mu.Unlock()
	if f != nil {
		f()
	}
}

var _ peer.DataChannel = (*DataChannel)(nil)
