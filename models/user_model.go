package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
)

type User struct {
	Base      `bson:",inline"`
	UserName  string             `bson:"userName" json:"userName" validate:"required"`
	FirstName string             `bson:"firstName" json:"firstName" validate:"required"`
	LastName  string             `bson:"lastName" json:"lastName" validate:"required"`
	Email     string             `bson:"email" json:"email" validate:"required,email"`
	Phone     string             `bson:"phone" json:"phone" validate:"required"`
	Password  string             `bson:"password" json:"password,omitempty"`
	Role      primitive.ObjectID `bson:"role" json:"role" validate:"required"`
	Status    bool               `bson:"status" json:"status"`
}

// Public returns a copy safe to serialize: the password hash is dropped.
func (u User) Public() User {
	u.Password = ""
	return u
}

func (u *User) Validate() error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.UserName = strings.TrimSpace(u.UserName)
	return check(u)
}

type Role struct {
	Base        `bson:",inline"`
	RoleName    string               `bson:"roleName" json:"roleName" validate:"required"`
	Permissions []primitive.ObjectID `bson:"permission" json:"permission"`
}

func (r *Role) Validate() error {
	r.RoleName = strings.TrimSpace(r.RoleName)
	return check(r)
}

// Permission names follow "resource:action", e.g. "sales:create".
type Permission struct {
	Base           `bson:",inline"`
	PermissionName string `bson:"permissionName" json:"permissionName" validate:"required"`
}

func (p *Permission) Validate() error {
	p.PermissionName = strings.TrimSpace(p.PermissionName)
	if err := check(p); err != nil {
		return err
	}
	if res, act := ParsePermission(p.PermissionName); res == "" || act == "" {
		return apperr.Validation("permissionName must look like resource:action")
	}
	return nil
}

const (
	WildcardAll          = "*"
	PermissionSuperAdmin = "*:*"
)

func ParsePermission(name string) (resource, action string) {
	parts := strings.SplitN(name, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// PermissionMatches reports whether the granted permission covers requested.
// "*:*" covers everything and "sales:*" covers every sales action.
func PermissionMatches(granted, requested string) bool {
	if granted == PermissionSuperAdmin || granted == requested {
		return true
	}
	res, act := ParsePermission(granted)
	reqRes, _ := ParsePermission(requested)
	return res != "" && res == reqRes && act == WildcardAll
}

// Identity is the authenticated actor attached to a request.
type Identity struct {
	User        User     `json:"user"`
	RoleName    string   `json:"roleName"`
	Permissions []string `json:"permissions"`
}

func (i *Identity) Can(permission string) bool {
	for _, granted := range i.Permissions {
		if PermissionMatches(granted, permission) {
			return true
		}
	}
	return false
}
