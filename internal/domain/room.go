package domain

import (
	"sort"
	"time"
)

// Room is the set of participants currently sharing a room id. It exists
// only while it has members.
type Room struct {
	ID        string
	Members   map[string]struct{}
	CreatedAt time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Members:   make(map[string]struct{}),
		CreatedAt: time.Now().UTC(),
	}
}

func (r *Room) Has(participantID string) bool {
	_, ok := r.Members[participantID]
	return ok
}

// MemberIDs returns the sorted member ids, leaving out exclude.
func (r *Room) MemberIDs(exclude string) []string {
	ids := make([]string, 0, len(r.Members))
	for id := range r.Members {
		if id == exclude {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) IsEmpty() bool {
	return len(r.Members) == 0
}

// RoomSnapshot is a read-only copy handed out of the registry.
type RoomSnapshot struct {
	ID        string
	Members   []string
	CreatedAt time.Time
}

func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		ID:        r.ID,
		Members:   r.MemberIDs(""),
		CreatedAt: r.CreatedAt,
	}
}
