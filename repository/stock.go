package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

// ErrInsufficientStock is returned by Decrement when the row holds fewer
// units than requested. The row is left untouched.
var ErrInsufficientStock = apperr.Validation("Insufficient stock")

type StockStore interface {
	FindByArticle(ctx context.Context, article primitive.ObjectID) (*models.Stock, error)
	Decrement(ctx context.Context, article primitive.ObjectID, qty int64) error
	Increment(ctx context.Context, article primitive.ObjectID, qty int64) error
	SetQuantity(ctx context.Context, article primitive.ObjectID, qty int64) (*models.Stock, error)
}

// StockView is the read side used by listings.
type StockView interface {
	List(ctx context.Context) ([]models.Stock, error)
	Quantities(ctx context.Context, articles []primitive.ObjectID) (map[primitive.ObjectID]int64, error)
}

type StockCollection struct {
	*Collection[models.Stock, *models.Stock]
}

func NewStockCollection(coll *mongo.Collection) *StockCollection {
	return &StockCollection{Collection: NewCollection[models.Stock](coll, "Stock")}
}

func (s *StockCollection) FindByArticle(ctx context.Context, article primitive.ObjectID) (*models.Stock, error) {
	st, err := s.FindOne(ctx, bson.M{"article": article})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.NotFound("No stock found for article %s", article.Hex())
	}
	return st, err
}

// Decrement removes qty units in a single conditional update, so the
// quantity can never drop below zero even under concurrent sales.
func (s *StockCollection) Decrement(ctx context.Context, article primitive.ObjectID, qty int64) error {
	filter := bson.M{"article": article, "stock": bson.M{"$gte": qty}}
	update := bson.M{
		"$inc": bson.M{"stock": -qty},
		"$set": bson.M{"updatedAt": now()},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Internal(err, "decrement stock")
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.FindByArticle(ctx, article); err != nil {
		return err
	}
	return ErrInsufficientStock
}

// Increment adds qty units, creating the row for a new article.
func (s *StockCollection) Increment(ctx context.Context, article primitive.ObjectID, qty int64) error {
	ts := now()
	update := bson.M{
		"$inc":         bson.M{"stock": qty},
		"$set":         bson.M{"updatedAt": ts},
		"$setOnInsert": bson.M{"createdAt": ts},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"article": article}, update, options.Update().SetUpsert(true))
	if err != nil {
		return apperr.Internal(err, "increment stock")
	}
	return nil
}

// SetQuantity overwrites the on-hand count after a physical inventory.
func (s *StockCollection) SetQuantity(ctx context.Context, article primitive.ObjectID, qty int64) (*models.Stock, error) {
	if qty < 0 {
		return nil, apperr.Validation("stock cannot be negative")
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"stock": qty, "updatedAt": now()}}

	var st models.Stock
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"article": article}, update, opts).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("No stock found for article %s", article.Hex())
	}
	if err != nil {
		return nil, apperr.Internal(err, "set stock")
	}
	return &st, nil
}

func (s *StockCollection) DeleteByArticle(ctx context.Context, article primitive.ObjectID) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{"article": article}); err != nil {
		return apperr.Internal(err, "delete stock")
	}
	return nil
}

func (s *StockCollection) List(ctx context.Context) ([]models.Stock, error) {
	return s.Find(ctx, nil)
}

// Quantities returns the on-hand count of each listed article that has a
// stock row.
func (s *StockCollection) Quantities(ctx context.Context, articles []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	out := make(map[primitive.ObjectID]int64, len(articles))
	if len(articles) == 0 {
		return out, nil
	}
	rows, err := s.Find(ctx, bson.M{"article": bson.M{"$in": articles}})
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Article] += r.Stock
	}
	return out, nil
}
