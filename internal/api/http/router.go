package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterOptions struct {
	CORSOrigins []string
}

// SetupRouter mounts only the controllers that are non-nil, so a disabled
// transport simply has no routes.
func SetupRouter(opts RouterOptions, signalController *SignalController, pollController *PollController, roomController *RoomController) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if signalController != nil {
		api.GET("/ws", signalController.Serve)
	}

	if pollController != nil {
		poll := api.Group("/poll")
		poll.POST("/connect", pollController.Connect)
		poll.POST("/:participantID/send", pollController.Send)
		poll.GET("/:participantID", pollController.Poll)
		poll.DELETE("/:participantID", pollController.Disconnect)
	}

	if roomController != nil {
		api.GET("/rooms", roomController.ListRooms)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if allowsAnyOrigin(origins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"}
	return config
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
