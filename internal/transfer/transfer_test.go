package transfer

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu        sync.Mutex
	sent      [][]byte
	buffered  uint64
	threshold uint64
	onLow     func()
	sendErr   error
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

func (c *fakeChannel) SetBufferedAmountLowThreshold(th uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = th
}

func (c *fakeChannel) OnBufferedAmountLow(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLow = f
}

func (c *fakeChannel) drainTo(amount uint64) {
	c.mu.Lock()
	c.buffered = amount
	fire := amount <= c.threshold
	cb := c.onLow
	c.mu.Unlock()
	if fire && cb != nil {
		cb()
	}
}

func (c *fakeChannel) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 1000, 1024, 1025, 10 * 1024}

	for _, size := range sizes {
		ch := &fakeChannel{}
		sender := NewSender(ch, Options{ChunkSize: 1024})
		payload := randomBytes(t, size)

		jobID, err := sender.Send(context.Background(), "report.pdf", bytes.NewReader(payload), int64(size))
		require.NoError(t, err)

		frames := ch.frames()
		require.Len(t, frames, ChunkCount(int64(size), 1024))

		r := NewReassembler(1 << 20)
		var got *File
		for i, f := range frames {
			file, err := r.Accept("alice", f)
			require.NoError(t, err)
			if i < len(frames)-1 {
				assert.Nil(t, file)
			}
			got = file
		}
		require.NotNil(t, got, "size %d", size)
		assert.Equal(t, jobID, got.JobID)
		assert.Equal(t, "report.pdf", got.Name)
		assert.Equal(t, "alice", got.From)
		assert.Equal(t, payload, append([]byte{}, got.Data...))
		assert.Zero(t, r.Pending("alice"))
	}
}

func TestChunkCount(t *testing.T) {
	assert.Equal(t, 1, ChunkCount(0, 16))
	assert.Equal(t, 1, ChunkCount(16, 16))
	assert.Equal(t, 2, ChunkCount(17, 16))
}

func TestOutOfOrderAndDuplicateChunks(t *testing.T) {
	ch := &fakeChannel{}
	payload := randomBytes(t, 4096)
	_, err := NewSender(ch, Options{ChunkSize: 1000}).Send(context.Background(), "a.bin", bytes.NewReader(payload), 4096)
	require.NoError(t, err)

	frames := ch.frames()
	require.Len(t, frames, 5)

	r := NewReassembler(0)
	order := []int{4, 2, 2, 0, 3, 1}
	var got *File
	for _, idx := range order {
		got, err = r.Accept("bob", frames[idx])
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, payload, got.Data)
}

func TestRejectsInvalidFrames(t *testing.T) {
	r := NewReassembler(0)

	_, err := r.Accept("bob", []byte{0xc1})
	require.ErrorIs(t, err, ErrInvalidFrame)

	bad, err := EncodeFrame(&Frame{JobID: "j", Index: 3, Total: 2})
	require.NoError(t, err)
	_, err = r.Accept("bob", bad)
	require.ErrorIs(t, err, ErrInvalidFrame)

	first, err := EncodeFrame(&Frame{JobID: "j", Index: 0, Total: 3, Name: "x", Size: 3, Data: []byte("a")})
	require.NoError(t, err)
	_, err = r.Accept("bob", first)
	require.NoError(t, err)

	conflicting, err := EncodeFrame(&Frame{JobID: "j", Index: 1, Total: 4, Data: []byte("b")})
	require.NoError(t, err)
	_, err = r.Accept("bob", conflicting)
	require.ErrorIs(t, err, ErrInvalidFrame)
	assert.Zero(t, r.Pending("bob"))
}

func TestRejectsOversizedFile(t *testing.T) {
	r := NewReassembler(10)

	frame, err := EncodeFrame(&Frame{JobID: "j", Index: 0, Total: 1, Name: "big", Size: 11, Data: []byte("0123456789")})
	require.NoError(t, err)

	_, err = r.Accept("bob", frame)
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Zero(t, r.Pending("bob"))
}

func TestAbandonReleasesPartialJobs(t *testing.T) {
	r := NewReassembler(0)

	for _, id := range []string{"j2", "j1"} {
		frame, err := EncodeFrame(&Frame{JobID: id, Index: 0, Total: 3, Name: id, Size: 3, Data: []byte("a")})
		require.NoError(t, err)
		_, err = r.Accept("bob", frame)
		require.NoError(t, err)
	}
	other, err := EncodeFrame(&Frame{JobID: "k", Index: 0, Total: 2, Size: 2, Data: []byte("a")})
	require.NoError(t, err)
	_, err = r.Accept("carol", other)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Pending("bob"))
	assert.Equal(t, []string{"j1", "j2"}, r.Abandon("bob"))
	assert.Zero(t, r.Pending("bob"))
	assert.Empty(t, r.Abandon("bob"))
	assert.Equal(t, 1, r.Pending("carol"))
}

func TestShortReader(t *testing.T) {
	ch := &fakeChannel{}
	_, err := NewSender(ch, Options{ChunkSize: 4}).Send(context.Background(), "x", bytes.NewReader([]byte("abc")), 10)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestSenderWaitsForLowWater(t *testing.T) {
	ch := &fakeChannel{buffered: 2 << 20}
	sender := NewSender(ch, Options{ChunkSize: 4, HighWater: 1 << 20, LowWater: 256 * 1024})
	assert.Equal(t, uint64(256*1024), ch.threshold)

	done := make(chan error, 1)
	go func() {
		_, err := sender.Send(context.Background(), "x", bytes.NewReader([]byte("abcdefgh")), 8)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, ch.frames())

	ch.drainTo(0)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not resume")
	}
	assert.Len(t, ch.frames(), 2)
}

func TestSenderStopsOnContextCancel(t *testing.T) {
	ch := &fakeChannel{buffered: 2 << 20}
	sender := NewSender(ch, Options{ChunkSize: 4})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sender.Send(ctx, "x", bytes.NewReader([]byte("abcd")), 4)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, ch.frames())
}

func TestRejectsImplausibleFrameCount(t *testing.T) {
	r := NewReassembler(1 << 30)

	// 16M frames cannot fit in 1 GiB at the minimum chunk size
	huge, err := EncodeFrame(&Frame{JobID: "j", Index: 1, Total: 1 << 24})
	require.NoError(t, err)
	_, err = r.Accept("mallory", huge)
	require.ErrorIs(t, err, ErrInvalidFrame)
	assert.Zero(t, r.Pending("mallory"))

	unbounded := NewReassembler(0)
	huge, err = EncodeFrame(&Frame{JobID: "j", Index: 1, Total: MaxFrames + 1})
	require.NoError(t, err)
	_, err = unbounded.Accept("mallory", huge)
	require.ErrorIs(t, err, ErrInvalidFrame)
	assert.Zero(t, unbounded.Pending("mallory"))

	limit := ChunkCount(1<<30, MinChunkSize)
	atLimit, err := EncodeFrame(&Frame{JobID: "k", Index: 1, Total: limit, Data: []byte("a")})
	require.NoError(t, err)
	_, err = r.Accept("mallory", atLimit)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Pending("mallory"))
}

func TestFirstChunkMustAgreeWithTotal(t *testing.T) {
	r := NewReassembler(0)

	// three bytes cannot be split over five non-empty chunks
	frame, err := EncodeFrame(&Frame{JobID: "j", Index: 0, Total: 5, Name: "x", Size: 3, Data: []byte("a")})
	require.NoError(t, err)
	_, err = r.Accept("bob", frame)
	require.ErrorIs(t, err, ErrInvalidFrame)
	assert.Zero(t, r.Pending("bob"))

	empty, err := EncodeFrame(&Frame{JobID: "e", Index: 0, Total: 2, Name: "empty"})
	require.NoError(t, err)
	_, err = r.Accept("bob", empty)
	require.ErrorIs(t, err, ErrInvalidFrame)

	ok, err := EncodeFrame(&Frame{JobID: "o", Index: 0, Total: 1, Name: "empty"})
	require.NoError(t, err)
	file, err := r.Accept("bob", ok)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Empty(t, file.Data)
}

func TestSendFailureReportsClosedChannel(t *testing.T) {
	ch := &fakeChannel{sendErr: errors.New("data channel is not open")}

	_, err := NewSender(ch, Options{ChunkSize: 4}).Send(context.Background(), "x", bytes.NewReader([]byte("abcd")), 4)
	require.ErrorIs(t, err, ErrChannelClosed)

	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "x", terr.File)
}
