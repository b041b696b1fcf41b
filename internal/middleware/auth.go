package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/internal/utils"
	"github.com/teamello/backend/pkg/response"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// bearerToken reads the token from the Authorization header, or from the
// token query parameter for EventSource clients that cannot set headers.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthRequired is a middleware that checks for a valid JWT token
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			if c.GetHeader("Authorization") == "" {
				response.Unauthorized(c, "authorization header required")
			} else {
				response.Unauthorized(c, "invalid authorization header format")
			}
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// GetIdentity returns the authenticated caller set by AuthRequired.
func GetIdentity(c *gin.Context) services.Identity {
	return services.Identity{
		UserID: c.GetString(ContextUserID),
		Email:  c.GetString(ContextEmail),
	}
}

// AdminRequired allows only the configured administrator accounts.
func AdminRequired(adminEmails []string) gin.HandlerFunc {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := admins[strings.ToLower(c.GetString(ContextEmail))]; !ok {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
