package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/middleware"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
	"bijouterie-backoffice/services"
)

// UserHandler manages accounts. Responses never carry the password hash.
type UserHandler struct {
	users repository.Store[models.User]
	auth  *services.AuthService
}

func NewUserHandler(users repository.Store[models.User], auth *services.AuthService) *UserHandler {
	return &UserHandler{users: users, auth: auth}
}

func (h *UserHandler) List(c *gin.Context) {
	q := query(c)
	var b repository.Builder
	b.Add(repository.NameSearch(searchText(q), "firstName", "lastName", "phone"))
	b.Add(repository.Contains("userName", q.Get("userName")))
	b.Try(repository.ObjectID(q, "role", "role"))
	b.Try(repository.Bool(q, "status", "status"))
	filter, err := b.Build()
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.users.Find(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.users.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}

// Update applies profile edits. A new password needs oldPassword.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UserUpdate
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.auth.Update(ctx, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": u})
}

func (h *UserHandler) ToggleStatus(c *gin.Context) {
	id, ok := h.otherUser(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.users.ToggleStatus(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User status updated successfully", "user": u.Public()})
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := h.otherUser(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.users.Delete(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// otherUser reads the :id parameter and refuses the caller's own account,
// which would lock them out.
func (h *UserHandler) otherUser(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return id, false
	}
	if identity, ok := middleware.CurrentIdentity(c); ok && identity.User.ID == id {
		respondError(c, apperr.Validation("You cannot disable or delete your own account"))
		return id, false
	}
	return id, true
}
