package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kvasnell/telezap/internal/preflight"
)

// PreflightGate rejects requests until the reachability gate has passed. No
// playback, time-sync or channel operation is permitted before that.
func PreflightGate(guard *preflight.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.Passed() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "preflight_not_passed",
				"message": "network preflight check has not passed",
				"state":   guard.State().String(),
			})
			return
		}
		c.Next()
	}
}
