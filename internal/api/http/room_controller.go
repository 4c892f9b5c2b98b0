package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/meshrelay/internal/api/http/converter"
	"github.com/immxrtalbeast/meshrelay/internal/service"
)

type RoomController struct {
	relay service.RelayInteractor
}

func NewRoomController(relay service.RelayInteractor) *RoomController {
	return &RoomController{relay: relay}
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	rooms := c.relay.ListRooms(ctx.Request.Context())
	ctx.JSON(http.StatusOK, gin.H{"rooms": converter.RoomsToApi(rooms)})
}
