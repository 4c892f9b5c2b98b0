package repository

import (
	"context"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
)

type RoomRegistry interface {
	Join(ctx context.Context, participantID, roomID string) (JoinResult, error)
	Leave(ctx context.Context, participantID string) (LeaveResult, error)
	RoomOf(ctx context.Context, participantID string) (string, bool)
	Members(ctx context.Context, roomID string) []string
	IsMember(ctx context.Context, roomID, participantID string) bool
	// Route calls deliver with the shared room id only when sender and target
	// are in the same room, and holds membership steady until deliver returns.
	// deliver must not call back into the registry.
	Route(ctx context.Context, senderID, targetID string, deliver func(roomID string)) bool
	List(ctx context.Context) []domain.RoomSnapshot
}

// JoinResult describes the membership change caused by a join.
// Roster never contains the joiner. PreviousRoom is set only when the join
// implicitly left another room.
type JoinResult struct {
	RoomID          string
	Roster          []string
	PreviousRoom    string
	PreviousMembers []string
}

type LeaveResult struct {
	RoomID      string
	Remaining   []string
	RoomDeleted bool
}
