// Package http is the gin adapter over the coordination core.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/heavenlabs/voiceroom/internal/app"
	"github.com/heavenlabs/voiceroom/internal/auth"
	"github.com/heavenlabs/voiceroom/internal/config"
	"github.com/heavenlabs/voiceroom/internal/ledger"
)

// API bundles the services the handlers dispatch into.
type API struct {
	Auth   *auth.Service
	Ledger *ledger.Ledger
	Rooms  *app.Registry
	Index  *app.DiscoveryIndex

	feedPeriod time.Duration
}

func NewAPI(authSvc *auth.Service, lg *ledger.Ledger, rooms *app.Registry, index *app.DiscoveryIndex, feedPeriod time.Duration) *API {
	if feedPeriod <= 0 {
		feedPeriod = 5 * time.Second
	}
	return &API{Auth: authSvc, Ledger: lg, Rooms: rooms, Index: index, feedPeriod: feedPeriod}
}

func SetupRouter(cfg *config.Config, api *API) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.POST("/auth/nonce", api.handleNonce)
	r.POST("/auth/verify", api.handleVerify)
	r.GET("/rooms/active", api.handleActiveRooms)
	r.GET("/rooms/feed", api.handleFeed)

	authed := r.Group("/", api.RequireAuth())
	authed.GET("/credits", api.handleCredits)
	authed.POST("/credits/verify-celo", api.handleVerifyCelo)
	authed.POST("/rooms/create", api.handleCreateRoom)
	authed.POST("/rooms/join", api.handleJoinRoom)
	authed.POST("/rooms/heartbeat", api.handleHeartbeat)
	authed.POST("/rooms/leave", api.handleLeaveRoom)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
