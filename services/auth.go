package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

var ErrInvalidCredentials = apperr.Unauthorized("Invalid identity or password")

type TokenIssuer interface {
	Issue(userID primitive.ObjectID) (token string, expires time.Time, err error)
}

type AuthService struct {
	users  repository.Store[models.User]
	roles  repository.Store[models.Role]
	tokens TokenIssuer
	log    *zap.Logger
	cost   int
}

func NewAuthService(users repository.Store[models.User], roles repository.Store[models.Role], tokens TokenIssuer, log *zap.Logger) *AuthService {
	return &AuthService{users: users, roles: roles, tokens: tokens, log: log, cost: bcrypt.DefaultCost}
}

type Session struct {
	Token   string      `json:"token"`
	Expires time.Time   `json:"expiresAt"`
	User    models.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, u *models.User, password string) (*models.User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	if err := s.checkUnique(ctx, u); err != nil {
		return nil, err
	}
	if _, err := s.roles.FindByID(ctx, u.Role); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}
	u.ID = primitive.NilObjectID
	u.Password = string(hash)
	u.Status = true
	if err := s.users.Insert(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user", u.ID.Hex()), zap.String("userName", u.UserName))
	out := u.Public()
	return &out, nil
}

// Login accepts either the email or the userName of an active user.
func (s *AuthService) Login(ctx context.Context, identity, password string) (*Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || password == "" {
		return nil, apperr.Validation("Please fill all the fields")
	}

	u, err := s.users.FindOne(ctx, bson.M{
		"status": true,
		"$or": bson.A{
			bson.M{"email": strings.ToLower(identity)},
			bson.M{"userName": identity},
		},
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, apperr.Internal(err, "issue token")
	}
	return &Session{Token: token, Expires: expires, User: u.Public()}, nil
}

type UserUpdate struct {
	UserName    string             `json:"userName"`
	FirstName   string             `json:"firstName"`
	LastName    string             `json:"lastName"`
	Email       string             `json:"email"`
	Phone       string             `json:"phone"`
	Role        primitive.ObjectID `json:"role"`
	OldPassword string             `json:"oldPassword"`
	NewPassword string             `json:"newPassword"`
}

// Update applies the non-empty fields of in. Changing the password needs the
// current one.
func (s *AuthService) Update(ctx context.Context, id primitive.ObjectID, in UserUpdate) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.UserName != "" {
		u.UserName = in.UserName
	}
	if in.FirstName != "" {
		u.FirstName = in.FirstName
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.Phone != "" {
		u.Phone = in.Phone
	}
	if !in.Role.IsZero() {
		if _, err := s.roles.FindByID(ctx, in.Role); err != nil {
			return nil, err
		}
		u.Role = in.Role
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, u); err != nil {
		return nil, err
	}

	if in.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(in.OldPassword)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return nil, apperr.Unauthorized("Incorrect password please try again")
			}
			return nil, apperr.Internal(err, "compare password")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
		if err != nil {
			return nil, apperr.Internal(err, "hash password")
		}
		u.Password = string(hash)
	}

	if err := s.users.Replace(ctx, u); err != nil {
		return nil, err
	}
	out := u.Public()
	return &out, nil
}

// checkUnique reports which identifying field is already taken by another
// user. The unique indexes remain the final word under concurrency.
func (s *AuthService) checkUnique(ctx context.Context, u *models.User) error {
	fields := []struct{ key, value, label string }{
		{"userName", u.UserName, "UserName"},
		{"email", u.Email, "Email"},
		{"phone", u.Phone, "Phone"},
	}
	for _, f := range fields {
		filter := bson.M{f.key: f.value}
		if !u.ID.IsZero() {
			filter["_id"] = bson.M{"$ne": u.ID}
		}
		taken, err := s.users.Exists(ctx, filter)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("%s already exists", f.label)
		}
	}
	return nil
}
