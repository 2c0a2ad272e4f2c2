package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

// Linker maintains a denormalized array of child ids on a parent document,
// e.g. supplier.articles or client.purchases.
type Linker interface {
	Add(ctx context.Context, parent, child primitive.ObjectID) error
	Remove(ctx context.Context, parent, child primitive.ObjectID) error
	// RemoveEverywhere returns the parents child was pulled from.
	RemoveEverywhere(ctx context.Context, child primitive.ObjectID) ([]primitive.ObjectID, error)
}

type ArrayField struct {
	coll   *mongo.Collection
	field  string
	entity string
}

func NewArrayField(coll *mongo.Collection, field, entity string) *ArrayField {
	return &ArrayField{coll: coll, field: field, entity: entity}
}

func (a *ArrayField) Add(ctx context.Context, parent, child primitive.ObjectID) error {
	return a.update(ctx, parent, bson.M{
		"$addToSet": bson.M{a.field: child},
		"$set":      bson.M{"updatedAt": now()},
	})
}

func (a *ArrayField) Remove(ctx context.Context, parent, child primitive.ObjectID) error {
	return a.update(ctx, parent, bson.M{
		"$pull": bson.M{a.field: child},
		"$set":  bson.M{"updatedAt": now()},
	})
}

// RemoveEverywhere pulls child from every parent that lists it.
func (a *ArrayField) RemoveEverywhere(ctx context.Context, child primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := a.coll.Find(ctx, bson.M{a.field: child}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, apperr.Internal(err, "find parents of "+a.field)
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperr.Internal(err, "decode parents of "+a.field)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	parents := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		parents[i] = r.ID
	}

	_, err = a.coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": parents}}, bson.M{
		"$pull": bson.M{a.field: child},
		"$set":  bson.M{"updatedAt": now()},
	})
	if err != nil {
		return nil, apperr.Internal(err, "unlink "+a.field)
	}
	return parents, nil
}

func (a *ArrayField) update(ctx context.Context, parent primitive.ObjectID, update bson.M) error {
	res, err := a.coll.UpdateOne(ctx, bson.M{"_id": parent}, update)
	if err != nil {
		return apperr.Internal(err, "update "+a.field)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("%s with ID %s not found", a.entity, parent.Hex())
	}
	return nil
}

// ClientLedger maintains a client's list of sales.
type ClientLedger interface {
	AddPurchase(ctx context.Context, client, sale primitive.ObjectID) error
	RemovePurchase(ctx context.Context, client, sale primitive.ObjectID) error
}

type ClientCollection struct {
	*Collection[models.Client, *models.Client]
	purchases *ArrayField
}

func NewClientCollection(coll *mongo.Collection) *ClientCollection {
	return &ClientCollection{
		Collection: NewCollection[models.Client](coll, "Client"),
		purchases:  NewArrayField(coll, "purchases", "Client"),
	}
}

func (c *ClientCollection) AddPurchase(ctx context.Context, client, sale primitive.ObjectID) error {
	return c.purchases.Add(ctx, client, sale)
}

func (c *ClientCollection) RemovePurchase(ctx context.Context, client, sale primitive.ObjectID) error {
	return c.purchases.Remove(ctx, client, sale)
}
