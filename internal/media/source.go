package media

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	pmedia "github.com/pion/webrtc/v3/pkg/media"
)

type Kind string

const (
	KindMicrophone Kind = "microphone"
	KindCamera     Kind = "camera"
	KindScreen     Kind = "screen"
)

var (
	ErrSourceClosed   = errors.New("media source closed")
	ErrUnknownKind    = errors.New("unknown media kind")
	ErrNotStarted     = errors.New("media not started")
	ErrAlreadySharing = errors.New("screen share already active")
	ErrNotSharing     = errors.New("screen share not active")
)

// Source is one opened capture device and the local track it feeds.
type Source interface {
	Kind() Kind
	Track() webrtc.TrackLocal
	SetEnabled(enabled bool)
	Enabled() bool
	WriteSample(sample pmedia.Sample) error
	Close() error
}

type Capturer interface {
	Open(kind Kind) (Source, error)
}

// SampleCapturer opens sources backed by pion sample tracks. Samples come
// from whatever feeds Source.WriteSample.
type SampleCapturer struct {
	StreamID string
}

func NewSampleCapturer() *SampleCapturer {
	return &SampleCapturer{StreamID: uuid.NewString()}
}

func (c *SampleCapturer) Open(kind Kind) (Source, error) {
	var codec webrtc.RTPCodecCapability
	switch kind {
	case KindMicrophone:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	case KindCamera, KindScreen:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	default:
		return nil, ErrUnknownKind
	}

	track, err := webrtc.NewTrackLocalStaticSample(codec, string(kind)+"-"+uuid.NewString(), c.StreamID)
	if err != nil {
		return nil, err
	}
	return &sampleSource{kind: kind, track: track, enabled: true}, nil
}

type sampleSource struct {
	kind  Kind
	track *webrtc.TrackLocalStaticSample

	mu      sync.RWMutex
	enabled bool
	closed  bool
}

func (s *sampleSource) Kind() Kind {
	return s.kind
}

func (s *sampleSource) Track() webrtc.TrackLocal {
	return s.track
}

func (s *sampleSource) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *sampleSource) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled && !s.closed
}

// WriteSample drops samples silently while the source is disabled.
func (s *sampleSource) WriteSample(sample pmedia.Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSourceClosed
	}
	if !s.enabled {
		return nil
	}
	return s.track.WriteSample(sample)
}

func (s *sampleSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
