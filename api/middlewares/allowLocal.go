package middlewares

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// OnlyAllowLocal rejects every request that does not come from the loopback interface.
func OnlyAllowLocal(c *gin.Context) {
	if ip := c.ClientIP(); ip == "127.0.0.1" || ip == "::1" {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
}

// OnlyAllowLocalOrigin rejects browser requests sent by pages outside localhost.
// Requests without an Origin header are not from a cross-site page and pass.
func OnlyAllowLocalOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" && !IsLocalOrigin(origin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden origin"})
		return
	}
	c.Next()
}

// LocalCORS lets web pages served from localhost call the gateway.
func LocalCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && IsLocalOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// IsLocalOrigin reports whether origin names a page served from localhost.
func IsLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
