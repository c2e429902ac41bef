package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/auth"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
	isGuestKey   = "isGuest"
)

// publicPrefixes lists paths that do not need an identity.
var publicPrefixes = []string{"/api/v1/health", "/api/v1/metrics"}

// TokenVerifier checks a bearer token. auth.Keys implements it.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

type envVerifier struct{}

func (envVerifier) Verify(token string) (auth.Claims, error) { return auth.VerifyJWT(token) }

// Auth resolves the caller from a bearer token or an X-Guest-Id header. A nil
// verifier reads the signing keys from the environment on every request.
func Auth(tokens TokenVerifier) gin.HandlerFunc {
	if tokens == nil {
		tokens = envVerifier{}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			claims, err := tokens.Verify(token)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				respond.Error(c, http.StatusUnauthorized, "token_expired", "Session expired, please sign in again", nil)
				return
			case err != nil:
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			setIdentity(c, claims)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims auth.Claims) {
	c.Set(userIDKey, claims.Subject)
	c.Set(isGuestKey, false)
	if claims.Email != "" {
		c.Set(userEmailKey, claims.Email)
	}
	if claims.Name != "" {
		c.Set(userNameKey, claims.Name)
	}
}

// RequireUser rejects guest identities. Mock-PDF downloads are tied to an account.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to download designs", nil)
			return
		}
		c.Next()
	}
}

// IsAuthenticated reports whether the request carries a non-guest identity.
func IsAuthenticated(c *gin.Context) bool {
	if UserIDFromContext(c) == "" {
		return false
	}
	if raw, ok := c.Get(isGuestKey); ok {
		if guest, ok := raw.(bool); ok && guest {
			return false
		}
	}
	return true
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userEmailKey)
}

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userNameKey)
}
