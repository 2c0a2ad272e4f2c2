package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

const (
	identityKey = "identity"
	cookieName  = "token"
)

// Auth accepts a bearer token or, failing that, the token cookie, and
// attaches the active user with its role permissions to the request.
func Auth(tokens *Issuer, identities repository.IdentityStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearer(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString, _ = c.Cookie(cookieName)
		}
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized: missing token")
			return
		}

		userID, err := tokens.Parse(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		identity, err := identities.Identity(ctx, userID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				abort(c, http.StatusUnauthorized, "User not found")
				return
			}
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !identity.User.Status {
			abort(c, http.StatusUnauthorized, "User account is disabled")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequirePermission must run after Auth.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized: missing token")
			return
		}
		if !identity.Can(permission) {
			abort(c, http.StatusForbidden, "You do not have permission to perform this action")
			return
		}
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*models.Identity)
	return identity, ok
}

// SetIdentity is used by tests that exercise handlers behind Auth.
func SetIdentity(c *gin.Context, identity *models.Identity) {
	c.Set(identityKey, identity)
}

// SetAuthCookie stores the token in an http-only cookie. Production runs
// behind a different origin than the frontend, which needs SameSite=None.
func SetAuthCookie(c *gin.Context, appEnv, tokenString string, duration time.Duration) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if appEnv == "production" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}
	c.SetSameSite(sameSite)
	c.SetCookie(cookieName, tokenString, int(duration.Seconds()), "/", "", secure, true)
}

func ClearAuthCookie(c *gin.Context, appEnv string) {
	SetAuthCookie(c, appEnv, "", -time.Second)
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
