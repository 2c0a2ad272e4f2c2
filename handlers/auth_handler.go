package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/middleware"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/services"
)

type AuthHandler struct {
	auth   *services.AuthService
	appEnv string
}

func NewAuthHandler(auth *services.AuthService, appEnv string) *AuthHandler {
	return &AuthHandler{auth: auth, appEnv: appEnv}
}

// Login accepts the email or the userName in identity, or in the field of
// that name. The token is returned and also set as an http-only cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var creds struct {
		Identity string `json:"identity"`
		Email    string `json:"email"`
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &creds) {
		return
	}
	identity := creds.Identity
	for _, alt := range []string{creds.Email, creds.UserName} {
		if identity == "" {
			identity = alt
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	session, err := h.auth.Login(ctx, identity, creds.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetAuthCookie(c, h.appEnv, session.Token, time.Until(session.Expires))
	c.JSON(http.StatusOK, gin.H{
		"message":   "Logged in successfully",
		"token":     session.Token,
		"expiresAt": session.Expires,
		"user":      session.User,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearAuthCookie(c, h.appEnv)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Register creates a user account; it sits behind the users:create permission.
func (h *AuthHandler) Register(c *gin.Context) {
	var u models.User
	if !bindJSON(c, &u) {
		return
	}
	password := u.Password
	u.Base, u.Password = models.Base{}, ""

	ctx, cancel := requestContext(c)
	defer cancel()

	created, err := h.auth.Register(ctx, &u, password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": created})
}

func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		respondError(c, apperr.Unauthorized("Unauthorized: missing token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        identity.User,
		"roleName":    identity.RoleName,
		"permissions": identity.Permissions,
	})
}
