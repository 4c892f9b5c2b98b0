package signaling

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/relaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dial(t *testing.T, url string, transports ...string) Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := Dial(ctx, url, transports, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func next(t *testing.T, tr Transport, kind domain.Kind) *domain.SignalMessage {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg, ok := <-tr.Incoming():
			require.True(t, ok, "incoming closed while waiting for %s", kind)
			if msg.Type == kind {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s envelope on %s", kind, tr.Name())
			return nil
		}
	}
}

func welcome(t *testing.T, tr Transport) string {
	t.Helper()
	msg := next(t, tr, domain.KindWelcome)
	require.NotEmpty(t, msg.TargetID)
	return msg.TargetID
}

func requireClosed(t *testing.T, tr Transport) {
	t.Helper()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-tr.Incoming():
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWebSocketURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://localhost:3001", "ws://localhost:3001/api/ws"},
		{"https://relay.example.com/", "wss://relay.example.com/api/ws"},
		{"http://host/base", "ws://host/base/api/ws"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, websocketURL(tc.in))
	}
}

func TestMixedTransportsShareRoom(t *testing.T) {
	srv := relaytest.NewServer(t, relaytest.DefaultOptions())

	ws := dial(t, srv.URL, "websocket")
	poll := dial(t, srv.URL, "polling")
	assert.Equal(t, "websocket", ws.Name())
	assert.Equal(t, "polling", poll.Name())

	wsID := welcome(t, ws)
	pollID := welcome(t, poll)

	require.NoError(t, ws.Send(&domain.SignalMessage{Type: domain.KindJoinRoom, Room: "lobby"}))
	roster := next(t, ws, domain.KindAllUsers)
	assert.Empty(t, roster.Users)

	require.NoError(t, poll.Send(&domain.SignalMessage{Type: domain.KindJoinRoom, Room: "lobby"}))
	roster = next(t, poll, domain.KindAllUsers)
	assert.Equal(t, []string{wsID}, roster.Users)

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, poll.Send(&domain.SignalMessage{Type: domain.KindOffer, TargetID: wsID, SDP: sdp}))

	offer := next(t, ws, domain.KindOffer)
	assert.Equal(t, pollID, offer.SenderID)
	assert.Equal(t, "lobby", offer.Room)
	assert.JSONEq(t, string(sdp), string(offer.SDP))
}

func TestCloseNotifiesRoom(t *testing.T) {
	for _, name := range []string{"websocket", "polling"} {
		t.Run(name, func(t *testing.T) {
			srv := relaytest.NewServer(t, relaytest.DefaultOptions())

			observer := dial(t, srv.URL, "websocket")
			welcome(t, observer)
			require.NoError(t, observer.Send(&domain.SignalMessage{Type: domain.KindJoinRoom, Room: "r"}))
			next(t, observer, domain.KindAllUsers)

			tr := dial(t, srv.URL, name)
			id := welcome(t, tr)
			require.NoError(t, tr.Send(&domain.SignalMessage{Type: domain.KindJoinRoom, Room: "r"}))
			next(t, tr, domain.KindAllUsers)

			require.NoError(t, tr.Close())
			assert.ErrorIs(t, tr.Send(&domain.SignalMessage{Type: domain.KindLeave}), ErrClosed)

			left := next(t, observer, domain.KindUserLeft)
			assert.Equal(t, id, left.SenderID)

			requireClosed(t, tr)
		})
	}
}

func TestDialFallsBackToPolling(t *testing.T) {
	opts := relaytest.DefaultOptions()
	opts.WebSocket = false
	srv := relaytest.NewServer(t, opts)

	tr := dial(t, srv.URL, "websocket", "polling")
	assert.Equal(t, "polling", tr.Name())
	welcome(t, tr)
}

func TestDialNoTransport(t *testing.T) {
	opts := relaytest.DefaultOptions()
	opts.Polling = false
	srv := relaytest.NewServer(t, opts)

	_, err := Dial(context.Background(), srv.URL, []string{"polling", "carrier-pigeon"}, discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTransport)
	assert.ErrorIs(t, err, ErrUnknownTransport)

	_, err = Dial(context.Background(), srv.URL, nil, discardLogger())
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestPollingDroppedByRelay(t *testing.T) {
	srv := relaytest.NewServer(t, relaytest.DefaultOptions())

	tr, err := DialPolling(context.Background(), srv.URL, nil, discardLogger())
	require.NoError(t, err)
	welcome(t, tr)

	srv.Relay.Disconnect(context.Background(), tr.ParticipantID())

	requireClosed(t, tr)
	require.NoError(t, tr.Close())
}

func TestListRooms(t *testing.T) {
	srv := relaytest.NewServer(t, relaytest.DefaultOptions())

	rooms, err := ListRooms(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	tr := dial(t, srv.URL, "websocket")
	id := welcome(t, tr)
	require.NoError(t, tr.Send(&domain.SignalMessage{Type: domain.KindJoinRoom, Room: "lobby"}))
	next(t, tr, domain.KindAllUsers)

	rooms, err = ListRooms(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "lobby", rooms[0].ID)
	assert.Equal(t, 1, rooms[0].MemberCount)
	assert.Equal(t, []string{id}, rooms[0].Members)
	assert.False(t, rooms[0].CreatedAt.IsZero())
}
