package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/transport/httpdto"
)

// AuthMiddleware verifies the bearer credential and attaches the
// resulting identity to the request context.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractToken("", c.GetHeader("Authorization"))
		identity, err := verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := auth.WithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
