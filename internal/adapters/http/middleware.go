package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

const walletKey = "wallet"

// RequireAuth validates the bearer token and stashes the subject
// wallet in the request context. Validation is pure: no storage
// round-trip per request.
func (api *API) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		wallet, err := api.Auth.ValidateToken(token)
		if err != nil {
			code := "unauthenticated"
			if errors.Is(err, domain.ErrTokenExpired) {
				code = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
			return
		}
		c.Set(walletKey, wallet)
		c.Next()
	}
}

func callerWallet(c *gin.Context) domain.Wallet {
	return c.MustGet(walletKey).(domain.Wallet)
}
