package transfer

import (
	"bytes"
	"sort"
	"sync"
)

// File is a fully reassembled transfer.
type File struct {
	JobID string
	From  string
	Name  string
	Data  []byte
}

type job struct {
	name     string
	size     int64
	sized    bool
	total    int
	received int64
	chunks   map[int][]byte
}

// Reassembler collects frames per (sender, job). It is safe for concurrent
// use.
type Reassembler struct {
	mu      sync.Mutex
	maxSize int64
	jobs    map[string]map[string]*job
}

func NewReassembler(maxSize int64) *Reassembler {
	return &Reassembler{
		maxSize: maxSize,
		jobs:    make(map[string]map[string]*job),
	}
}

// Accept adds one frame. It returns the file once every chunk is present,
// and nil while the job is still incomplete. A rejected frame drops its
// whole job.
func (r *Reassembler) Accept(from string, data []byte) (*File, error) {
	const op = "transfer.accept"

	f, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	peerJobs, ok := r.jobs[from]
	if !ok {
		peerJobs = make(map[string]*job)
		r.jobs[from] = peerJobs
	}

	j, ok := peerJobs[f.JobID]
	if !ok {
		if f.Total > r.maxFrames() {
			if len(peerJobs) == 0 {
				delete(r.jobs, from)
			}
			return nil, NewError(op, ErrInvalidFrame)
		}
		j = &job{total: f.Total, chunks: make(map[int][]byte)}
		peerJobs[f.JobID] = j
	}

	if j.total != f.Total {
		r.dropLocked(from, f.JobID)
		return nil, NewError(op, ErrInvalidFrame)
	}
	if f.Index == 0 {
		j.name = f.Name
		j.size = f.Size
		j.sized = true
		if r.maxSize > 0 && f.Size > r.maxSize {
			r.dropLocked(from, f.JobID)
			return nil, NewFileError(op, f.Name, ErrFileTooLarge)
		}
		// every chunk but an empty file's only one carries at least a byte
		if int64(f.Total) > max(f.Size, 1) {
			r.dropLocked(from, f.JobID)
			return nil, NewFileError(op, f.Name, ErrInvalidFrame)
		}
	}
	if _, dup := j.chunks[f.Index]; dup {
		return nil, nil
	}

	j.received += int64(len(f.Data))
	if r.maxSize > 0 && j.received > r.maxSize {
		r.dropLocked(from, f.JobID)
		return nil, NewFileError(op, j.name, ErrFileTooLarge)
	}
	j.chunks[f.Index] = append([]byte(nil), f.Data...)

	if len(j.chunks) < j.total {
		return nil, nil
	}

	r.dropLocked(from, f.JobID)
	if j.sized && j.received != j.size {
		return nil, NewFileError(op, j.name, ErrSizeMismatch)
	}

	var buf bytes.Buffer
	buf.Grow(int(j.received))
	for idx := 0; idx < j.total; idx++ {
		buf.Write(j.chunks[idx])
	}

	return &File{
		JobID: f.JobID,
		From:  from,
		Name:  j.name,
		Data:  buf.Bytes(),
	}, nil
}

// Abandon frees every partial job received from the peer and returns the
// abandoned job ids.
func (r *Reassembler) Abandon(from string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	peerJobs := r.jobs[from]
	delete(r.jobs, from)

	ids := make([]string, 0, len(peerJobs))
	for id := range peerJobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Reassembler) Pending(from string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs[from])
}

// maxFrames bounds the frame count a job may declare.
func (r *Reassembler) maxFrames() int {
	if r.maxSize <= 0 {
		return MaxFrames
	}
	return ChunkCount(r.maxSize, MinChunkSize)
}

func (r *Reassembler) dropLocked(from, jobID string) {
	peerJobs := r.jobs[from]
	delete(peerJobs, jobID)
	if len(peerJobs) == 0 {
		delete(r.jobs, from)
	}
}
