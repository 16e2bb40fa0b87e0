package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parley/chat-service/services"
)

const (
	// ContextUserID is the gin context key holding the authenticated user id.
	ContextUserID = "userID"
	// ContextUsername is the gin context key holding the authenticated username.
	ContextUsername = "username"
	// ContextEmail is the gin context key holding the authenticated email.
	ContextEmail = "email"
)

// Auth validates the bearer token and stores the identity on the context.
// The token is read from the Authorization header or, for websocket
// connections where custom headers are awkward, the token query parameter.
func Auth(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c.Request)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization token",
			})
			return
		}

		claims, err := tokens.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// ExtractToken pulls a bearer token from the Authorization header or the
// token query parameter.
func ExtractToken(r *http.Request) string {
	// Try Authorization header first
	bearerToken := r.Header.Get("Authorization")
	if strings.HasPrefix(bearerToken, "Bearer ") {
		return strings.TrimPrefix(bearerToken, "Bearer ")
	}

	// For WebSocket connections, check query parameter
	return r.URL.Query().Get("token")
}
