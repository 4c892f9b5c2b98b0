package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type RoomInfo struct {
	ID          string    `json:"id"`
	MemberCount int       `json:"member_count"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListRooms fetches the relay's current rooms.
func ListRooms(ctx context.Context, relayURL string, client *http.Client) ([]RoomInfo, error) {
	const op = "signaling.list_rooms"
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(relayURL, "/")+"/api/rooms", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var body struct {
		Rooms []RoomInfo `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return body.Rooms, nil
}
