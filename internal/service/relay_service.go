package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/repository"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUnsupportedKind     = errors.New("unsupported signal type")
	ErrMessageRequired     = errors.New("message is required")
)

type RelayOptions struct {
	QueueSize     int
	IncludeSender bool
}

type RelayService struct {
	registry repository.RoomRegistry
	log      *slog.Logger
	opts     RelayOptions

	mu           sync.RWMutex
	participants map[string]*domain.Participant
}

func NewRelayService(registry repository.RoomRegistry, opts RelayOptions, log *slog.Logger) *RelayService {
	if log == nil {
		log = slog.Default()
	}
	return &RelayService{
		registry:     registry,
		log:          log,
		opts:         opts,
		participants: make(map[string]*domain.Participant),
	}
}

// Connect registers a new participant and queues the welcome envelope
// carrying its id.
func (s *RelayService) Connect(transport domain.Transport) *domain.Participant {
	p := domain.NewParticipant(transport, s.opts.QueueSize)

	s.mu.Lock()
	s.participants[p.ID] = p
	s.mu.Unlock()

	p.EnqueueEvent(domain.SignalMessage{
		Type:     domain.KindWelcome,
		TargetID: p.ID,
	})

	s.log.Info("participant connected",
		slog.String("participant_id", p.ID),
		slog.String("transport", string(p.Transport)),
	)
	return p
}

func (s *RelayService) Participant(id string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// Disconnect forgets the participant, removes it from its room and closes
// its queue. Calling it twice is a no-op.
func (s *RelayService) Disconnect(ctx context.Context, participantID string) {
	const op = "service.relay.disconnect"
	log := s.log.With(
		slog.String("op", op),
		slog.String("participant_id", participantID),
	)

	s.mu.Lock()
	p, ok := s.participants[participantID]
	delete(s.participants, participantID)
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.leave(ctx, participantID); err != nil && !errors.Is(err, repository.ErrNotInRoom) {
		log.Error("failed to leave room", sl.Err(err))
	}
	p.Close()

	log.Info("participant disconnected")
}

func (s *RelayService) HandleSignal(ctx context.Context, participantID string, message *domain.SignalMessage) error {
	const op = "service.relay.signal"
	if message == nil {
		return fmt.Errorf("%s: %w", op, ErrMessageRequired)
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("participant_id", participantID),
		slog.String("type", string(message.Type)),
	)

	sender, err := s.Participant(participantID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sender.Touch()

	log.Debug("new signal", slog.String("target", message.TargetID))

	switch message.Type {
	case domain.KindJoinRoom:
		return s.join(ctx, participantID, message.Room)
	case domain.KindOffer, domain.KindAnswer, domain.KindICE:
		s.forward(ctx, participantID, message)
	case domain.KindChatMessage:
		s.chat(ctx, participantID, message)
	case domain.KindLeave:
		err := s.leave(ctx, participantID)
		if errors.Is(err, repository.ErrNotInRoom) {
			log.Debug("leave without room")
			return nil
		}
		return err
	default:
		return fmt.Errorf("%s: %w: %q", op, ErrUnsupportedKind, message.Type)
	}

	return nil
}

func (s *RelayService) ListRooms(ctx context.Context) []domain.RoomSnapshot {
	return s.registry.List(ctx)
}

func (s *RelayService) join(ctx context.Context, participantID, roomID string) error {
	const op = "service.relay.join"
	log := s.log.With(
		slog.String("op", op),
		slog.String("participant_id", participantID),
		slog.String("room", roomID),
	)

	res, err := s.registry.Join(ctx, participantID, roomID)
	if err != nil {
		log.Info("join failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.PreviousRoom != "" {
		s.send(res.PreviousMembers, domain.SignalMessage{
			Type:     domain.KindUserLeft,
			Room:     res.PreviousRoom,
			SenderID: participantID,
		})
	}

	s.send([]string{participantID}, domain.SignalMessage{
		Type:  domain.KindAllUsers,
		Room:  roomID,
		Users: res.Roster,
	})

	log.Info("participant joined room", slog.Int("roster_size", len(res.Roster)))
	return nil
}

func (s *RelayService) leave(ctx context.Context, participantID string) error {
	const op = "service.relay.leave"

	res, err := s.registry.Leave(ctx, participantID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.send(res.Remaining, domain.SignalMessage{
		Type:     domain.KindUserLeft,
		Room:     res.RoomID,
		SenderID: participantID,
	})

	s.log.Info("participant left room",
		slog.String("op", op),
		slog.String("participant_id", participantID),
		slog.String("room", res.RoomID),
		slog.Bool("room_deleted", res.RoomDeleted),
	)
	return nil
}

// forward delivers a negotiation envelope to its target only when both
// sides share a room. The enqueue happens while the registry holds the
// membership, so it can never land after the matching user-left. Misses are
// dropped without telling the sender.
func (s *RelayService) forward(ctx context.Context, senderID string, message *domain.SignalMessage) {
	routed := s.registry.Route(ctx, senderID, message.TargetID, func(roomID string) {
		out := *message
		out.Room = roomID
		out.SenderID = senderID
		s.send([]string{out.TargetID}, out)
	})
	if !routed {
		s.log.Debug("dropping unroutable signal",
			slog.String("participant_id", senderID),
			slog.String("target", message.TargetID),
			slog.String("type", string(message.Type)),
		)
	}
}

func (s *RelayService) chat(ctx context.Context, senderID string, message *domain.SignalMessage) {
	roomID, ok := s.registry.RoomOf(ctx, senderID)
	if !ok {
		s.log.Debug("dropping chat outside room", slog.String("participant_id", senderID))
		return
	}

	out := domain.SignalMessage{
		Type:     domain.KindChatMessage,
		Room:     roomID,
		SenderID: senderID,
		Payload:  message.Payload,
	}

	exclude := senderID
	if s.opts.IncludeSender {
		exclude = ""
	}
	s.broadcast(ctx, roomID, out, exclude)
}

func (s *RelayService) broadcast(ctx context.Context, roomID string, msg domain.SignalMessage, exclude string) {
	members := s.registry.Members(ctx, roomID)
	targets := make([]string, 0, len(members))
	for _, id := range members {
		if id == exclude {
			continue
		}
		targets = append(targets, id)
	}
	s.send(targets, msg)
}

func (s *RelayService) send(ids []string, msg domain.SignalMessage) {
	for _, id := range ids {
		p, err := s.Participant(id)
		if err != nil {
			continue
		}
		if !p.EnqueueEvent(msg) {
			s.log.Debug("dropping event",
				slog.String("participant_id", id),
				slog.String("type", string(msg.Type)),
			)
		}
	}
}

// ReapIdle disconnects polling participants that have not polled since
// idle ago and returns how many were dropped.
func (s *RelayService) ReapIdle(ctx context.Context, now time.Time, idle time.Duration) int {
	s.mu.RLock()
	stale := make([]string, 0)
	for id, p := range s.participants {
		if p.Transport != domain.TransportPolling {
			continue
		}
		if now.Sub(p.LastSeen()) > idle {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.log.Info("reaping idle participant", slog.String("participant_id", id))
		s.Disconnect(ctx, id)
	}
	return len(stale)
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (s *RelayService) RunReaper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.ReapIdle(ctx, now, idle)
		}
	}
}
