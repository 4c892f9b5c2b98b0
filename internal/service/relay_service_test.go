package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(opts RelayOptions) *RelayService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRelayService(repository.NewInMemoryRoomRegistry(), opts, log)
}

// drain returns every queued event without blocking.
func drain(p *domain.Participant) []domain.SignalMessage {
	var out []domain.SignalMessage
	for {
		select {
		case msg, ok := <-p.Events():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func connectAndJoin(t *testing.T, s *RelayService, room string) *domain.Participant {
	t.Helper()
	p := s.Connect(domain.TransportWebSocket)
	require.NoError(t, s.HandleSignal(context.Background(), p.ID, &domain.SignalMessage{
		Type: domain.KindJoinRoom,
		Room: room,
	}))
	return p
}

func ofKind(msgs []domain.SignalMessage, kind domain.Kind) []domain.SignalMessage {
	var out []domain.SignalMessage
	for _, m := range msgs {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	return out
}

func TestConnectSendsWelcome(t *testing.T) {
	s := newTestRelay(RelayOptions{})
	p := s.Connect(domain.TransportWebSocket)

	msgs := drain(p)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.KindWelcome, msgs[0].Type)
	assert.Equal(t, p.ID, msgs[0].TargetID)
}

func TestJoinRoster(t *testing.T) {
	s := newTestRelay(RelayOptions{})

	a := connectAndJoin(t, s, "lobby")
	b := connectAndJoin(t, s, "lobby")
	c := connectAndJoin(t, s, "lobby")

	rosterA := ofKind(drain(a), domain.KindAllUsers)
	require.Len(t, rosterA, 1)
	assert.Empty(t, rosterA[0].Users)

	rosterB := ofKind(drain(b), domain.KindAllUsers)
	require.Len(t, rosterB, 1)
	assert.Equal(t, []string{a.ID}, rosterB[0].Users)

	rosterC := ofKind(drain(c), domain.KindAllUsers)
	require.Len(t, rosterC, 1)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, rosterC[0].Users)
	assert.NotContains(t, rosterC[0].Users, c.ID)
}

func TestUnicastReachesOnlyTarget(t *testing.T) {
	ctx := context.Background()
	s := newTestRelay(RelayOptions{})

	a := connectAndJoin(t, s, "lobby")
	b := connectAndJoin(t, s, "lobby")
	c := connectAndJoin(t, s, "lobby")
	outsider := connectAndJoin(t, s, "other")
	for _, p := range []*domain.Participant{a, b, c, outsider} {
		drain(p)
	}

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, s.HandleSignal(ctx, c.ID, &domain.SignalMessage{
		Type:     domain.KindOffer,
		TargetID: a.ID,
		SenderID: "spoofed",
		SDP:      sdp,
	}))

	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindOffer, got[0].Type)
	assert.Equal(t, c.ID, got[0].SenderID)
	assert.Equal(t, "lobby", got[0].Room)
	assert.JSONEq(t, string(sdp), string(got[0].SDP))

	assert.Empty(t, drain(b))
	assert.Empty(t, drain(c))
	assert.Empty(t, drain(outsider))
}

func TestUnicastAcrossRoomsIsDropped(t *testing.T) {
	ctx := context.Background()
	s := newTestRelay(RelayOptions{})

	a := connectAndJoin(t, s, "lobby")
	outsider := connectAndJoin(t, s, "other")
	drain(a)
	drain(outsider)

	require.NoError(t, s.HandleSignal(ctx, outsider.ID, &domain.SignalMessage{
		Type:      domain.KindICE,
		TargetID:  a.ID,
		Candidate: json.RawMessage(`{"candidate":"x"}`),
	}))
	require.NoError(t, s.HandleSignal(ctx, a.ID, &domain.SignalMessage{
		Type:     domain.KindAnswer,
		TargetID: "does-not-exist",
	}))

	assert.Empty(t, drain(a))
	assert.Empty(t, drain(outsider))
}

func TestExactlyOneUserLeft(t *testing.T) {
	ctx := context.Background()
	s := newTestRelay(RelayOptions{})

	a := connectAndJoin(t, s, "lobby")
	b := connectAndJoin(t, s, "lobby")
	drain(a)
	drain(b)

	require.NoError(t, s.HandleSignal(ctx, b.ID, &domain.SignalMessage{Type: domain.KindLeave}))
	s.Disconnect(ctx, b.ID)
	s.Disconnect(ctx, b.ID)

	left := ofKind(drain(a), domain.KindUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, b.ID, left[0].SenderID)
	assert.True(t, b.Closed())
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	ctx := context.Background()
	s := newTestRelay(RelayOptions{})

	a := connectAndJoin(t, s, "lobby")
	b := connectAndJoin(t, s, "lobby")
	drain(a)

	s.Disconnect(ctx, b.ID)

	left := ofKind(drain(a), domain.KindUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, b.ID, left[0].SenderID)
	rooms := s.ListRooms(ctx)
	require.Len(t, rooms, 1)
	assert.Equal(t, []string{a.ID}, rooms[0].Members)

	_, err := s.Participant(b.ID)
	require.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestSwitchingRoomsNotifiesPreviousRoom(t *testing.T) {
	ctx := context.Background()
	s := newTestRelay(RelayOptions{})

	a := connectAndJoin(t, s, "lobby")
	b := connectAndJoin(t, s, "lobby")
	drain(a)
	drain(b)

	require.NoError(t, s.HandleSignal(ctx, b.ID, &domain.SignalMessage{
		Type: domain.KindJoinRoom,
		Room: "kitchen",
	}))

	left := ofKind(drain(a), domain.KindUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "lobby", left[0].Room)

	roster := ofKind(drain(b), domain.KindAllUsers)
	require.Len(t, roster, 1)
	assert.Empty(t, roster[0].Users)
}

func TestChatBroadcast(t *testing.T) {
	tests := []struct {
		name          string
		includeSender bool
	}{
		{name: "echo to sender", includeSender: true},
		{name: "others only", includeSender: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestRelay(RelayOptions{IncludeSender: tt.includeSender})

			a := connectAndJoin(t, s, "lobby")
			b := connectAndJoin(t, s, "lobby")
			outsider := connectAndJoin(t, s, "other")
			drain(a)
			drain(b)
			drain(outsider)

			payload := json.RawMessage(`{"content":"hi","sender_name":"Alice"}`)
			require.NoError(t, s.HandleSignal(ctx, a.ID, &domain.SignalMessage{
				Type:    domain.KindChatMessage,
				Payload: payload,
			}))

			got := drain(b)
			require.Len(t, got, 1)
			assert.Equal(t, a.ID, got[0].SenderID)
			assert.JSONEq(t, string(payload), string(got[0].Payload))

			if tt.includeSender {
				assert.Len(t, drain(a), 1)
			} else {
				assert.Empty(t, drain(a))
			}
			assert.Empty(t, drain(outsider))
		})
	}
}

func TestUnsupportedKind(t *testing.T) {
	s := newTestRelay(RelayOptions{})
	p := s.Connect(domain.TransportWebSocket)

	err := s.HandleSignal(context.Background(), p.ID, &domain.SignalMessage{Type: "bogus"})
	require.ErrorIs(t, err, ErrUnsupportedKind)

	err = s.HandleSignal(context.Background(), "unknown", &domain.SignalMessage{Type: domain.KindLeave})
	require.ErrorIs(t, err, ErrParticipantNotFound)

	err = s.HandleSignal(context.Background(), p.ID, nil)
	require.ErrorIs(t, err, ErrMessageRequired)
}

func TestFullQueueDropsOnlyForThatParticipant(t *testing.T) {
	ctx := context.Background()
	s := newTestRelay(RelayOptions{QueueSize: 2, IncludeSender: true})

	a := connectAndJoin(t, s, "lobby")
	b := connectAndJoin(t, s, "lobby")
	drain(b)

	// a still holds welcome and all-users, so its queue is full
	for i := 0; i < 3; i++ {
		require.NoError(t, s.HandleSignal(ctx, b.ID, &domain.SignalMessage{
			Type:    domain.KindChatMessage,
			Payload: json.RawMessage(`{"content":"x"}`),
		}))
		assert.Len(t, drain(b), 1)
	}
	assert.Len(t, drain(a), 2)
}

func TestReapIdlePollingParticipants(t *testing.T) {
	ctx := context.Background()
	s := newTestRelay(RelayOptions{})

	ws := s.Connect(domain.TransportWebSocket)
	poll := s.Connect(domain.TransportPolling)

	n := s.ReapIdle(ctx, time.Now().Add(time.Minute), 30*time.Second)
	assert.Equal(t, 1, n)

	_, err := s.Participant(poll.ID)
	require.ErrorIs(t, err, ErrParticipantNotFound)
	_, err = s.Participant(ws.ID)
	require.NoError(t, err)
}

func TestNoSignalFromParticipantAfterItsUserLeft(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		s := newTestRelay(RelayOptions{QueueSize: 1024})
		leaver := connectAndJoin(t, s, "lobby")
		stayer := connectAndJoin(t, s, "lobby")
		drain(leaver)
		drain(stayer)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = s.HandleSignal(ctx, leaver.ID, &domain.SignalMessage{
					Type:      domain.KindICE,
					TargetID:  stayer.ID,
					Candidate: json.RawMessage(`{"candidate":"x"}`),
				})
			}
		}()
		require.NoError(t, s.HandleSignal(ctx, leaver.ID, &domain.SignalMessage{Type: domain.KindLeave}))
		wg.Wait()

		msgs := drain(stayer)
		leftAt := -1
		for i, m := range msgs {
			if m.Type == domain.KindUserLeft {
				leftAt = i
			}
		}
		require.NotEqual(t, -1, leftAt)
		for _, m := range msgs[leftAt+1:] {
			assert.NotEqual(t, domain.KindICE, m.Type, "candidate from %s delivered after its user-left", leaver.ID)
		}
	}
}
