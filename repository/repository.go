// Package repository wraps the mongo collections behind small typed stores.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

// Store is the persistence contract shared by every entity.
type Store[T any] interface {
	Find(ctx context.Context, filter bson.M) ([]T, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*T, error)
	FindOne(ctx context.Context, filter bson.M) (*T, error)
	Insert(ctx context.Context, doc *T) error
	Replace(ctx context.Context, doc *T) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ToggleStatus(ctx context.Context, id primitive.ObjectID) (*T, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	Exists(ctx context.Context, filter bson.M) (bool, error)
}

// Collection implements Store over one mongo collection. PT is *T and
// lets the store stamp ids and timestamps through models.Document.
type Collection[T any, PT interface {
	*T
	models.Document
}] struct {
	coll   *mongo.Collection
	entity string
	now    func() time.Time
}

// NewCollection returns a store named after entity in not-found messages,
// e.g. "Client with ID ... not found".
func NewCollection[T any, PT interface {
	*T
	models.Document
}](coll *mongo.Collection, entity string) *Collection[T, PT] {
	return &Collection[T, PT]{coll: coll, entity: entity, now: now}
}

// now matches the millisecond precision mongo stores, so a document kept in
// memory after a write still carries the exact updatedAt of the stored copy.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// nextVersion returns a timestamp strictly after prev, so two writes in the
// same millisecond still produce distinct versions.
func nextVersion(ts, prev time.Time) time.Time {
	if !ts.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return ts
}

func (c *Collection[T, PT]) Raw() *mongo.Collection { return c.coll }

func (c *Collection[T, PT]) Find(ctx context.Context, filter bson.M) ([]T, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal(err, "find "+c.entity)
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Internal(err, "decode "+c.entity)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (c *Collection[T, PT]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	doc, err := c.FindOne(ctx, bson.M{"_id": id})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.NotFound("%s with ID %s not found", c.entity, id.Hex())
	}
	return doc, err
}

func (c *Collection[T, PT]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	err := c.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, c.translate(err, "find "+c.entity)
	}
	return &doc, nil
}

func (c *Collection[T, PT]) Insert(ctx context.Context, doc *T) error {
	p := PT(doc)
	if p.GetID().IsZero() {
		p.SetID(primitive.NewObjectID())
	}
	p.Touch(c.now())
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return c.translate(err, "insert "+c.entity)
	}
	return nil
}

// Replace writes doc only if the stored copy still carries the updatedAt doc
// was read with. A concurrent writer in between turns the call into a Conflict.
func (c *Collection[T, PT]) Replace(ctx context.Context, doc *T) error {
	p := PT(doc)
	filter := bson.M{"_id": p.GetID()}
	if prev := p.GetUpdatedAt(); !prev.IsZero() {
		filter["updatedAt"] = prev
	}
	prevDoc := *doc
	p.Touch(nextVersion(c.now(), p.GetUpdatedAt()))

	res, err := c.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		*doc = prevDoc
		return c.translate(err, "replace "+c.entity)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	*doc = prevDoc

	exists, err := c.Exists(ctx, bson.M{"_id": p.GetID()})
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("%s was modified by another request, reload it and retry", c.entity)
	}
	return apperr.NotFound("%s with ID %s not found", c.entity, p.GetID().Hex())
}

func (c *Collection[T, PT]) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Internal(err, "delete "+c.entity)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("%s with ID %s not found", c.entity, id.Hex())
	}
	return nil
}

// ToggleStatus flips the status flag server side, so two concurrent toggles
// can never both observe the same starting value.
func (c *Collection[T, PT]) ToggleStatus(ctx context.Context, id primitive.ObjectID) (*T, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"status":    bson.M{"$not": bson.A{"$status"}},
			"updatedAt": c.now(),
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	err := c.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("%s with ID %s not found", c.entity, id.Hex())
		}
		return nil, apperr.Internal(err, "toggle "+c.entity)
	}
	return &doc, nil
}

func (c *Collection[T, PT]) Count(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, apperr.Internal(err, "count "+c.entity)
	}
	return n, nil
}

func (c *Collection[T, PT]) Exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := c.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, apperr.Internal(err, "count "+c.entity)
	}
	return n > 0, nil
}

func (c *Collection[T, PT]) translate(err error, op string) error {
	return translate(err, c.entity, op)
}

func translate(err error, entity, op string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("%s not found", entity)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Conflict("%s already exists", entity)
	default:
		return apperr.Internal(err, op)
	}
}

var (
	_ Store[models.Article] = (*Collection[models.Article, *models.Article])(nil)
	_ StockStore            = (*StockCollection)(nil)
	_ StockView             = (*StockCollection)(nil)
	_ SalesReport           = (*SaleCollection)(nil)
	_ ReferenceAllocator    = (*Counters)(nil)
	_ Linker                = (*ArrayField)(nil)
	_ ClientLedger          = (*ClientCollection)(nil)
	_ IdentityStore         = (*UserCollection)(nil)
)
