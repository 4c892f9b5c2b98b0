package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
)

var (
	ErrNotInRoom     = errors.New("participant is not in a room")
	ErrEmptyRoomID   = errors.New("room id is empty")
	ErrEmptyMemberID = errors.New("participant id is empty")
)

type InMemoryRoomRegistry struct {
	mu      sync.RWMutex
	rooms   map[string]*domain.Room
	members map[string]string
}

func NewInMemoryRoomRegistry() *InMemoryRoomRegistry {
	return &InMemoryRoomRegistry{
		rooms:   make(map[string]*domain.Room),
		members: make(map[string]string),
	}
}

func (r *InMemoryRoomRegistry) Join(ctx context.Context, participantID, roomID string) (JoinResult, error) {
	if err := ctx.Err(); err != nil {
		return JoinResult{}, err
	}
	if participantID == "" {
		return JoinResult{}, ErrEmptyMemberID
	}
	if roomID == "" {
		return JoinResult{}, ErrEmptyRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := JoinResult{RoomID: roomID}

	if current, ok := r.members[participantID]; ok {
		if current == roomID {
			result.Roster = r.rooms[roomID].MemberIDs(participantID)
			return result, nil
		}
		left := r.removeLocked(participantID)
		result.PreviousRoom = left.RoomID
		result.PreviousMembers = left.Remaining
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = domain.NewRoom(roomID)
		r.rooms[roomID] = room
	}
	result.Roster = room.MemberIDs(participantID)
	room.Members[participantID] = struct{}{}
	r.members[participantID] = roomID

	return result, nil
}

func (r *InMemoryRoomRegistry) Leave(ctx context.Context, participantID string) (LeaveResult, error) {
	if err := ctx.Err(); err != nil {
		return LeaveResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[participantID]; !ok {
		return LeaveResult{}, ErrNotInRoom
	}
	return r.removeLocked(participantID), nil
}

func (r *InMemoryRoomRegistry) removeLocked(participantID string) LeaveResult {
	roomID := r.members[participantID]
	delete(r.members, participantID)

	result := LeaveResult{RoomID: roomID}
	room, ok := r.rooms[roomID]
	if !ok {
		result.RoomDeleted = true
		return result
	}

	delete(room.Members, participantID)
	result.Remaining = room.MemberIDs("")
	if room.IsEmpty() {
		delete(r.rooms, roomID)
		result.RoomDeleted = true
	}
	return result
}

func (r *InMemoryRoomRegistry) RoomOf(ctx context.Context, participantID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.members[participantID]
	return roomID, ok
}

func (r *InMemoryRoomRegistry) Members(ctx context.Context, roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return room.MemberIDs("")
}

func (r *InMemoryRoomRegistry) IsMember(ctx context.Context, roomID, participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	return room.Has(participantID)
}

func (r *InMemoryRoomRegistry) Route(ctx context.Context, senderID, targetID string, deliver func(roomID string)) bool {
	if ctx.Err() != nil || senderID == "" || targetID == "" || senderID == targetID {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.members[senderID]
	if !ok || r.members[targetID] != roomID {
		return false
	}
	deliver(roomID)
	return true
}

func (r *InMemoryRoomRegistry) List(ctx context.Context) []domain.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.RoomSnapshot, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, room.Snapshot())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
