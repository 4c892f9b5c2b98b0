package service

import (
	"context"

	"github.com/immxrtalbeast/meshrelay/internal/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mock_service.go -package=mocks

type RelayInteractor interface {
	Connect(transport domain.Transport) *domain.Participant
	Participant(id string) (*domain.Participant, error)
	Disconnect(ctx context.Context, participantID string)
	HandleSignal(ctx context.Context, participantID string, message *domain.SignalMessage) error
	ListRooms(ctx context.Context) []domain.RoomSnapshot
}
