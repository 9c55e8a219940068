package middleware

import (
	"context"
	"net/http"
	"strings"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/pkg/errors"
	"realtime-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// IdentityKey holds the *models.Identity resolved for the request
	IdentityKey = "identity"
	// authErrorKey holds why an explicitly presented token was rejected
	authErrorKey = "authError"
)

// Authenticator resolves a session token to the acting user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

// SessionAuth resolves the session, if any, and stores the identity on the
// context. It never aborts: pages and endpoints that need a user add
// RequireAuth or RequirePageAuth after it.
func SessionAuth(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromHeader := TokenFromRequest(c, cookieName)
		if token == "" {
			c.Next()
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.FromContext(c).Debug("Session rejected", "error", err.Error())
			if fromHeader {
				c.Set(authErrorKey, err)
			} else {
				// Stale cookie: drop it so the browser stops sending it
				ClearSessionCookie(c, cookieName, false)
			}
			c.Next()
			return
		}

		c.Set(IdentityKey, identity)
		c.Set("userID", identity.ID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), UserIDKey, identity.ID))

		c.Next()
	}
}

// RequireAuth rejects JSON requests without a valid session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentIdentity(c) != nil {
			c.Next()
			return
		}

		if v, ok := c.Get(authErrorKey); ok {
			if err, ok := v.(error); ok {
				c.Error(err)
				c.Abort()
				return
			}
		}

		c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authentication required"))
		c.Abort()
	}
}

// RequirePageAuth redirects browsers without a session to loginPath
func RequirePageAuth(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentIdentity(c) == nil {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RedirectIfAuthenticated keeps signed-in users away from the login and register pages
func RedirectIfAuthenticated(homePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentIdentity(c) != nil {
			c.Redirect(http.StatusFound, homePath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity resolved by SessionAuth, or nil
func CurrentIdentity(c *gin.Context) *models.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
// fromHeader reports which one was used.
func TokenFromRequest(c *gin.Context, cookieName string) (token string, fromHeader bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:]), true
		}
	}

	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie, false
	}
	return "", false
}

// SetSessionCookie stores token in an HTTP-only cookie
func SetSessionCookie(c *gin.Context, name, token string, maxAgeSeconds int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAgeSeconds, "/", "", secure, true)
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(c *gin.Context, name string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", secure, true)
}
