package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

type nonceRequest struct {
	Wallet string `json:"wallet"`
}

type verifyRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

type createRoomRequest struct {
	Visibility string `json:"visibility"`
}

type joinRequest struct {
	RoomID string `json:"room_id"`
}

type connectionRequest struct {
	RoomID       string `json:"room_id"`
	ConnectionID string `json:"connection_id"`
}

func (api *API) handleNonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	wallet, err := domain.ParseWallet(req.Wallet)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_wallet"})
		return
	}
	nonce, err := api.Auth.IssueChallenge(c.Request.Context(), wallet)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (api *API) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	wallet, err := domain.ParseWallet(req.Wallet)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_wallet"})
		return
	}
	token, err := api.Auth.Verify(c.Request.Context(), wallet, req.Signature, req.Nonce)
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
	case errors.Is(err, domain.ErrNonceExpiredOrReused):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "nonce_expired_or_reused"})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func (api *API) handleCredits(c *gin.Context) {
	balance, err := api.Ledger.GetBalance(c.Request.Context(), callerWallet(c))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (api *API) handleVerifyCelo(c *gin.Context) {
	granted, err := api.Ledger.RequireVerifiedIdentity(c.Request.Context(), callerWallet(c))
	switch {
	case errors.Is(err, domain.ErrNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_verified"})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"granted": granted})
	}
}

func (api *API) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	// An empty body is fine: visibility defaults to open.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
			return
		}
	}
	visibility, err := domain.ParseVisibility(req.Visibility)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_visibility"})
		return
	}
	room, err := api.Rooms.Create(c.Request.Context(), callerWallet(c), visibility)
	switch {
	case errors.Is(err, domain.ErrIdentityRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "heaven_name_required"})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"room_id": room.ID, "visibility": room.Visibility})
	}
}

func (api *API) handleJoinRoom(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	connID, err := api.Rooms.Join(c.Request.Context(), callerWallet(c), domain.RoomID(req.RoomID))
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
	case errors.Is(err, domain.ErrHostAlreadyJoined):
		c.JSON(http.StatusConflict, gin.H{"error": "host_already_joined"})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"connection_id": connID})
	}
}

func (api *API) handleHeartbeat(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.ConnectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	res, err := api.Rooms.Heartbeat(c.Request.Context(), callerWallet(c),
		domain.RoomID(req.RoomID), domain.ConnectionID(req.ConnectionID))
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
	case errors.Is(err, domain.ErrConnectionStale):
		c.JSON(http.StatusNotFound, gin.H{"error": "connection_stale"})
	case err != nil:
		internalError(c, err)
	case res.EndedOutOfCredit:
		// The heartbeat itself is acknowledged; the caller reacts to
		// the distinct end-of-session signal.
		c.JSON(http.StatusOK, gin.H{"ok": true, "session_ended": "out_of_credit"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (api *API) handleLeaveRoom(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.ConnectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	res, err := api.Rooms.Leave(c.Request.Context(), callerWallet(c),
		domain.RoomID(req.RoomID), domain.ConnectionID(req.ConnectionID))
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
	case errors.Is(err, domain.ErrConnectionStale):
		c.JSON(http.StatusNotFound, gin.H{"error": "connection_stale"})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "closed": res.Closed})
	}
}

func (api *API) handleActiveRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": api.Index.List()})
}

func internalError(c *gin.Context, err error) {
	log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
