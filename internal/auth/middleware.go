package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "accountsUser"

// Cookie names used for browser sessions.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// AuthMiddleware validates the access token and injects the authenticated user.
// The token is read from the accessToken cookie or a bearer Authorization header.
func AuthMiddleware(authenticator *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authenticator.Authenticate(c.Request.Context(), requestToken(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(string(userContextKey), user)
		c.Next()
	}
}

// CurrentUser extracts the authenticated user from the context.
func CurrentUser(c *gin.Context) (User, bool) {
	value, exists := c.Get(string(userContextKey))
	if !exists {
		return User{}, false
	}
	user, ok := value.(User)
	return user, ok
}

// RequireUser fetches the authenticated user and its identifier.
func RequireUser(c *gin.Context) (uuid.UUID, User, bool) {
	user, ok := CurrentUser(c)
	if !ok || user.ID == uuid.Nil {
		return uuid.Nil, User{}, false
	}
	return user.ID, user, true
}

func requestToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return extractBearerToken(c.GetHeader("Authorization"))
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
