package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/korrelate/ingestcore/utils"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware validates X-API-Key with a constant-time comparison.
// /health, /ready, /live and /internal/callback are mounted outside this
// middleware's route group and are never subject to it.
func APIKeyMiddleware(expected string) gin.HandlerFunc {
	expectedBytes := []byte(expected)
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-Key")
		if len(got) != len(expectedBytes) || subtle.ConstantTimeCompare([]byte(got), expectedBytes) != 1 {
			utils.RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid API key", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
