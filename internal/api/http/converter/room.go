package converter

import (
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
)

type RoomResponse struct {
	ID          string    `json:"id"`
	MemberCount int       `json:"member_count"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

func RoomToApi(r domain.RoomSnapshot) RoomResponse {
	members := r.Members
	if members == nil {
		members = []string{}
	}
	return RoomResponse{
		ID:          r.ID,
		MemberCount: len(members),
		Members:     members,
		CreatedAt:   r.CreatedAt,
	}
}

func RoomsToApi(rooms []domain.RoomSnapshot) []RoomResponse {
	out := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomToApi(r))
	}
	return out
}
