package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Base carries the identity and timestamps every stored document shares.
// It is inlined into each entity, so the fields sit at the top level of the document.
type Base struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Document is implemented by pointers to every entity through Base.
type Document interface {
	GetID() primitive.ObjectID
	SetID(id primitive.ObjectID)
	GetUpdatedAt() time.Time
	Touch(now time.Time)
	Meta() *Base
}

func (b *Base) GetID() primitive.ObjectID { return b.ID }

func (b *Base) SetID(id primitive.ObjectID) { b.ID = id }

func (b *Base) GetUpdatedAt() time.Time { return b.UpdatedAt }

// Meta exposes the embedded Base so generic code can reset or carry over
// the stored identity of a document decoded from a request body.
func (b *Base) Meta() *Base { return b }

// Touch stamps UpdatedAt, and CreatedAt for a document never saved before.
func (b *Base) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Image references an uploaded file stored on local disk.
type Image struct {
	Filename     string `bson:"filename" json:"filename"`
	OriginalName string `bson:"originalname" json:"originalname"`
	FileType     string `bson:"fileType" json:"fileType"`
}

// ImageHolder is implemented by entities that carry an uploaded image.
type ImageHolder interface {
	Document
	GetImage() *Image
	SetImage(img *Image)
}
