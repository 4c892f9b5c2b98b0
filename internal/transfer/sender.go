package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Channel is the part of a data channel the sender needs.
// *webrtc.DataChannel satisfies it.
type Channel interface {
	Send(data []byte) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
}

type Options struct {
	ChunkSize int
	HighWater int
	LowWater  int
}

func (o *Options) setDefaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.HighWater <= 0 {
		o.HighWater = DefaultHighWater
	}
	if o.LowWater <= 0 || o.LowWater >= o.HighWater {
		o.LowWater = o.HighWater / 4
	}
}

// windowRecheck bounds how long the sender trusts a missed low-water
// callback.
const windowRecheck = time.Second

type Sender struct {
	channel Channel
	opts    Options
	low     chan struct{}
}

func NewSender(ch Channel, opts Options) *Sender {
	opts.setDefaults()
	s := &Sender{
		channel: ch,
		opts:    opts,
		low:     make(chan struct{}, 1),
	}
	ch.SetBufferedAmountLowThreshold(uint64(opts.LowWater))
	ch.OnBufferedAmountLow(func() {
		select {
		case s.low <- struct{}{}:
		default:
		}
	})
	return s
}

// Send streams size bytes from r as one job and returns its id. It pauses
// while the channel holds more than the high-water mark.
func (s *Sender) Send(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	const op = "transfer.send"

	jobID := uuid.NewString()
	total := ChunkCount(size, s.opts.ChunkSize)
	buf := make([]byte, s.opts.ChunkSize)
	remaining := size

	for idx := 0; idx < total; idx++ {
		n := int64(s.opts.ChunkSize)
		if remaining < n {
			n = remaining
		}
		chunk := buf[:n]
		if _, err := io.ReadFull(r, chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrShortRead
			}
			return jobID, NewFileError(op, name, err)
		}
		remaining -= n

		frame := &Frame{JobID: jobID, Index: idx, Total: total, Data: chunk}
		if idx == 0 {
			frame.Name = name
			frame.Size = size
		}
		data, err := EncodeFrame(frame)
		if err != nil {
			return jobID, err
		}

		if err := s.waitForWindow(ctx); err != nil {
			return jobID, NewFileError(op, name, err)
		}
		if err := s.channel.Send(data); err != nil {
			return jobID, NewFileError(op, name, fmt.Errorf("%w: %w", ErrChannelClosed, err))
		}
	}

	return jobID, nil
}

func (s *Sender) waitForWindow(ctx context.Context) error {
	for s.channel.BufferedAmount() > uint64(s.opts.HighWater) {
		timer := time.NewTimer(windowRecheck)
		select {
		case <-s.low:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
	return ctx.Err()
}
