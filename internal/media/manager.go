package media

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// Manager owns the local capture devices and decides which tracks are
// offered to peers. Muting keeps the track set intact; camera and screen
// changes alter it and notify listeners.
type Manager struct {
	capturer Capturer
	log      *slog.Logger

	mu        sync.Mutex
	started   bool
	mic       Source
	camera    Source
	screen    Source
	muted     bool
	listeners []func([]webrtc.TrackLocal)
}

func NewManager(capturer Capturer, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{capturer: capturer, log: log}
}

func (m *Manager) Start(withCamera bool) error {
	const op = "media.manager.start"

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	mic, err := m.capturer.Open(KindMicrophone)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	m.mic = mic
	m.started = true

	if withCamera {
		camera, err := m.capturer.Open(KindCamera)
		if err != nil {
			m.log.Warn("camera unavailable", slog.String("op", op), sl.Err(err))
		} else {
			m.camera = camera
		}
	}
	tracks, listeners := m.tracksLocked(), m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, tracks)
	return nil
}

func (m *Manager) SetMuted(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mic == nil {
		return ErrNotStarted
	}
	m.muted = muted
	m.mic.SetEnabled(!muted)
	return nil
}

func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// SetCamera opens or releases the camera. While a screen share is active the
// camera stays suspended and the track set does not change.
func (m *Manager) SetCamera(on bool) error {
	const op = "media.manager.camera"

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}

	changed := false
	switch {
	case on && m.camera == nil:
		camera, err := m.capturer.Open(KindCamera)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("%s: %w", op, err)
		}
		if m.screen != nil {
			camera.SetEnabled(false)
		}
		m.camera = camera
		changed = m.screen == nil
	case !on && m.camera != nil:
		if err := m.camera.Close(); err != nil {
			m.log.Warn("camera close failed", slog.String("op", op), sl.Err(err))
		}
		m.camera = nil
		changed = m.screen == nil
	}

	if !changed {
		m.mu.Unlock()
		return nil
	}
	tracks, listeners := m.tracksLocked(), m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, tracks)
	return nil
}

func (m *Manager) StartScreenShare() error {
	const op = "media.manager.screen.start"

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.screen != nil {
		m.mu.Unlock()
		return ErrAlreadySharing
	}
	screen, err := m.capturer.Open(KindScreen)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	m.screen = screen
	if m.camera != nil {
		m.camera.SetEnabled(false)
	}
	tracks, listeners := m.tracksLocked(), m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, tracks)
	return nil
}

func (m *Manager) StopScreenShare() error {
	const op = "media.manager.screen.stop"

	m.mu.Lock()
	if m.screen == nil {
		m.mu.Unlock()
		return ErrNotSharing
	}
	if err := m.screen.Close(); err != nil {
		m.log.Warn("screen close failed", slog.String("op", op), sl.Err(err))
	}
	m.screen = nil
	if m.camera != nil {
		m.camera.SetEnabled(true)
	}
	tracks, listeners := m.tracksLocked(), m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, tracks)
	return nil
}

func (m *Manager) Sharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen != nil
}

// Source returns the open source of the given kind, if any.
func (m *Manager) Source(kind Kind) (Source, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Source
	switch kind {
	case KindMicrophone:
		s = m.mic
	case KindCamera:
		s = m.camera
	case KindScreen:
		s = m.screen
	}
	return s, s != nil
}

func (m *Manager) Tracks() []webrtc.TrackLocal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracksLocked()
}

func (m *Manager) OnTracksChanged(f func([]webrtc.TrackLocal)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, f)
}

// Close releases every device. Listeners are not notified.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, s := range []Source{m.screen, m.camera, m.mic} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.mic, m.camera, m.screen = nil, nil, nil
	m.started = false
	m.muted = false
	return firstErr
}

func (m *Manager) tracksLocked() []webrtc.TrackLocal {
	tracks := make([]webrtc.TrackLocal, 0, 2)
	if m.mic != nil {
		tracks = append(tracks, m.mic.Track())
	}
	switch {
	case m.screen != nil:
		tracks = append(tracks, m.screen.Track())
	case m.camera != nil:
		tracks = append(tracks, m.camera.Track())
	}
	return tracks
}

func (m *Manager) listenersLocked() []func([]webrtc.TrackLocal) {
	return append([]func([]webrtc.TrackLocal){}, m.listeners...)
}

func notify(listeners []func([]webrtc.TrackLocal), tracks []webrtc.TrackLocal) {
	for _, f := range listeners {
		f(tracks)
	}
}
