package transfer

import (
	"github.com/vmihailenco/msgpack/v5"
)

const (
	DefaultChunkSize = 16 * 1024
	DefaultHighWater = 1 << 20
	DefaultLowWater  = 256 * 1024

	// MinChunkSize is the smallest chunk a receiver budgets for when it
	// bounds the frame count of a job before chunk 0 arrives.
	MinChunkSize = 1024
	// MaxFrames caps the frame count of a job when no size limit is set.
	MaxFrames = 1 << 20
)

// Frame is one chunk of a file on the data channel. Name and Size are only
// set on chunk 0.
type Frame struct {
	JobID string `msgpack:"job"`
	Index int    `msgpack:"idx"`
	Total int    `msgpack:"total"`
	Name  string `msgpack:"name,omitempty"`
	Size  int64  `msgpack:"size,omitempty"`
	Data  []byte `msgpack:"data"`
}

func EncodeFrame(f *Frame) ([]byte, error) {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, NewError("encode frame", err)
	}
	return data, nil
}

func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, NewError("decode frame", ErrInvalidFrame)
	}
	if f.JobID == "" || f.Total < 1 || f.Index < 0 || f.Index >= f.Total || f.Size < 0 {
		return nil, NewError("decode frame", ErrInvalidFrame)
	}
	return &f, nil
}

// ChunkCount is the number of frames needed for size bytes. An empty file
// still takes one frame.
func ChunkCount(size int64, chunkSize int) int {
	if size <= 0 {
		return 1
	}
	n := size / int64(chunkSize)
	if size%int64(chunkSize) != 0 {
		n++
	}
	return int(n)
}
