package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ensemble is a named set of articles sold together.
type Ensemble struct {
	Base        `bson:",inline"`
	Status      bool                 `bson:"status" json:"status"`
	Name        string               `bson:"name" json:"name" validate:"required"`
	Description string               `bson:"description" json:"description" validate:"required"`
	Creator     primitive.ObjectID   `bson:"creator" json:"creator"`
	Articles    []primitive.ObjectID `bson:"articles" json:"articles" validate:"required,min=1"`
	Img         *Image               `bson:"img,omitempty" json:"img,omitempty"`
}

func (e *Ensemble) GetImage() *Image     { return e.Img }
func (e *Ensemble) SetImage(img *Image) { e.Img = img }

func (e *Ensemble) Validate() error { return check(e) }

type EnsembleCategory struct {
	Base        `bson:",inline"`
	Status      bool                 `bson:"status" json:"status"`
	Name        string               `bson:"name" json:"name" validate:"required"`
	Description string               `bson:"description" json:"description" validate:"required"`
	Ensembles   []primitive.ObjectID `bson:"ensembles" json:"ensembles"`
}

func (c *EnsembleCategory) Validate() error { return check(c) }
