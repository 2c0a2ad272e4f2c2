package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
)

type ArticleType string

const (
	ArticleRing     ArticleType = "Bague"
	ArticleNecklace ArticleType = "Collier"
	ArticleBracelet ArticleType = "Bracelet"
	ArticleEarrings ArticleType = "Boucles"
	ArticleOther    ArticleType = "Autre"
)

type Article struct {
	Base        `bson:",inline"`
	Status      bool               `bson:"status" json:"status"`
	Name        string             `bson:"name" json:"name" validate:"required"`
	Description string             `bson:"description" json:"description" validate:"required"`
	Weight      float64            `bson:"weight" json:"weight" validate:"gt=0"`
	Img         *Image             `bson:"img,omitempty" json:"img,omitempty"`
	Color       primitive.ObjectID `bson:"color" json:"color" validate:"required"`
	TypeArticle ArticleType        `bson:"typeArticle" json:"typeArticle" validate:"required,oneof=Bague Collier Bracelet Boucles Autre"`
	Catalog     primitive.ObjectID `bson:"catalog" json:"catalog" validate:"required"`
	Supplier    primitive.ObjectID `bson:"supplier" json:"supplier" validate:"required"`
	SellPrice   Amount             `bson:"sellPrice" json:"sellPrice" validate:"gt=0"`
	BuyPrice    Amount             `bson:"buyPrice" json:"buyPrice" validate:"gt=0"`
	BarCode     string             `bson:"barCode,omitempty" json:"barCode,omitempty" validate:"required"`
	CreatedBy   primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	Date        time.Time          `bson:"date" json:"date"`

	// CountArticle is the on-hand quantity. It is read from the stock row
	// and never persisted on the article itself.
	CountArticle int64 `bson:"-" json:"countArticle" validate:"gte=0"`
}

func (a *Article) GetImage() *Image     { return a.Img }
func (a *Article) SetImage(img *Image) { a.Img = img }

func (a *Article) Validate() error { return check(a) }

type Catalog struct {
	Base        `bson:",inline"`
	Status      bool                 `bson:"status" json:"status"`
	Name        string               `bson:"name" json:"name" validate:"required"`
	Description string               `bson:"description" json:"description" validate:"required"`
	Img         *Image               `bson:"img,omitempty" json:"img,omitempty"`
	Articles    []primitive.ObjectID `bson:"articles" json:"articles"`
}

func (c *Catalog) GetImage() *Image     { return c.Img }
func (c *Catalog) SetImage(img *Image) { c.Img = img }

func (c *Catalog) Validate() error { return check(c) }

type Category struct {
	Base        `bson:",inline"`
	Name        string `bson:"name" json:"name" validate:"required"`
	Description string `bson:"description" json:"description" validate:"required"`
}

func (c *Category) Validate() error { return check(c) }

type Color struct {
	Base `bson:",inline"`
	Name string `bson:"name" json:"name" validate:"required"`
	Hex  string `bson:"hex" json:"hex" validate:"required,hexcolor"`
}

func (c *Color) Validate() error { return check(c) }

// Stock is the on-hand quantity of one article. The unique index on
// article keeps the relation one to one.
type Stock struct {
	Base    `bson:",inline"`
	Article primitive.ObjectID `bson:"article" json:"article"`
	Stock   int64              `bson:"stock" json:"stock"`
}

// Purchase records goods bought from a supplier. It is the only path that
// increases stock.
type Purchase struct {
	Base         `bson:",inline"`
	Ref          int64              `bson:"ref" json:"ref"`
	Article      primitive.ObjectID `bson:"article" json:"article"`
	CountArticle int64              `bson:"countArticle" json:"countArticle"`
	Supplier     primitive.ObjectID `bson:"supplier" json:"supplier"`
	TypeArticle  ArticleType        `bson:"typeArticle" json:"typeArticle"`
	TotalWeight  float64            `bson:"totalweight" json:"totalweight"`
	Total        Amount             `bson:"total" json:"total"`
}

// NewPurchase prices count units of article at its buy price.
func NewPurchase(article *Article, count int64) (*Purchase, error) {
	if count < 1 {
		return nil, apperr.Validation("countArticle must be at least 1")
	}
	return &Purchase{
		Article:      article.ID,
		CountArticle: count,
		Supplier:     article.Supplier,
		TypeArticle:  article.TypeArticle,
		TotalWeight:  article.Weight * float64(count),
		Total:        article.BuyPrice.Times(count),
	}, nil
}
