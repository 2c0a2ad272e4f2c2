package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bijouterie-backoffice/apperr"
)

// ReferenceAllocator hands out sequential human-facing references.
type ReferenceAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Counters keeps one document per sequence in the counters collection:
// {_id: "sales", seq: 42}. Each Next is a single atomic $inc.
type Counters struct {
	coll    *mongo.Collection
	sources map[string]*mongo.Collection
}

// NewCounters allocates references for the named collections. Seed must run
// before the first Next so a sequence starts after the highest ref already
// stored there and data written before the counter existed is never reused.
func NewCounters(coll *mongo.Collection, sources map[string]*mongo.Collection) *Counters {
	return &Counters{coll: coll, sources: sources}
}

// Seed creates the missing counter of every source collection. It runs once
// at startup, outside any request transaction, so a counter is never written
// by a transaction that later aborts.
func (c *Counters) Seed(ctx context.Context) error {
	for name := range c.sources {
		if err := c.seed(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Next takes the following reference of name. A sequence without a counter
// starts at 1.
func (c *Counters) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := c.coll.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, apperr.Internal(err, "allocate "+name+" reference")
	}
	return doc.Seq, nil
}

func (c *Counters) seed(ctx context.Context, name string) error {
	exists, err := c.coll.CountDocuments(ctx, bson.M{"_id": name})
	if err != nil {
		return apperr.Internal(err, "read counter")
	}
	if exists > 0 {
		return nil
	}

	var max int64
	if src, ok := c.sources[name]; ok {
		opts := options.FindOne().SetSort(bson.D{{Key: "ref", Value: -1}}).SetProjection(bson.M{"ref": 1})
		var top struct {
			Ref int64 `bson:"ref"`
		}
		err := src.FindOne(ctx, bson.M{}, opts).Decode(&top)
		switch {
		case err == nil:
			max = top.Ref
		case !errors.Is(err, mongo.ErrNoDocuments):
			return apperr.Internal(err, "read highest "+name+" reference")
		}
	}

	_, err = c.coll.InsertOne(ctx, bson.M{"_id": name, "seq": max})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return apperr.Internal(err, "seed counter")
	}
	return nil
}
