package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Client struct {
	Base       `bson:",inline"`
	FirstName  string               `bson:"firstName" json:"firstName" validate:"required"`
	LastName   string               `bson:"lastName" json:"lastName" validate:"required"`
	TypeClient string               `bson:"typeClient" json:"typeClient" validate:"required"`
	Phone      string               `bson:"phone" json:"phone" validate:"required"`
	Status     bool                 `bson:"status" json:"status"`
	Email      string               `bson:"email" json:"email" validate:"required,email"`
	Address    string               `bson:"address,omitempty" json:"address,omitempty"`
	Purchases  []primitive.ObjectID `bson:"purchases" json:"purchases"`
}

func (c *Client) Validate() error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return check(c)
}

type Supplier struct {
	Base         `bson:",inline"`
	FirstName    string               `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName     string               `bson:"lastName" json:"lastName" validate:"required"`
	Email        string               `bson:"email" json:"email" validate:"required,email"`
	Phone        string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string               `bson:"address,omitempty" json:"address,omitempty"`
	Status       bool                 `bson:"status" json:"status"`
	Articles     []primitive.ObjectID `bson:"articles" json:"articles"`
	TotalPayment Amount               `bson:"totalPayment" json:"totalPayment"`
}

func (s *Supplier) Validate() error {
	s.FirstName = strings.ToLower(strings.TrimSpace(s.FirstName))
	s.LastName = strings.ToLower(strings.TrimSpace(s.LastName))
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Phone = strings.TrimSpace(s.Phone)
	return check(s)
}

type Technician struct {
	Base      `bson:",inline"`
	Status    bool   `bson:"status" json:"status"`
	FirstName string `bson:"firstName" json:"firstName" validate:"required"`
	LastName  string `bson:"lastName" json:"lastName" validate:"required"`
	Phone     string `bson:"phone" json:"phone" validate:"required"`
}

func (t *Technician) Validate() error {
	t.FirstName = strings.ToLower(strings.TrimSpace(t.FirstName))
	t.LastName = strings.ToLower(strings.TrimSpace(t.LastName))
	return check(t)
}
