package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/ratelimit"
	"mingle-gateway/internal/transport/httpdto"
)

// HandshakeRateLimitMiddleware bounds websocket handshakes per client IP.
func HandshakeRateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowHandshake(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Limiter outage must not take the gateway down with it.
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// MessageRateLimitMiddleware bounds authenticated message sends. Applied
// after AuthMiddleware.
func MessageRateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.AllowMessage(c.Request.Context(), identity.ID.Hex())
		if err != nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *ratelimit.Result) {
	c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Writer.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(result.ResetIn.Seconds())))
}
