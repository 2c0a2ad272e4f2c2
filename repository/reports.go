package repository

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

const dayFormat = "%Y-%m-%d"

// SalesReport groups sales per calendar day in the shop's time zone.
// A zero from or to leaves that side of the range open.
type SalesReport interface {
	Daily(ctx context.Context, from, to time.Time) ([]models.DailySales, error)
}

type SaleCollection struct {
	*Collection[models.Sale, *models.Sale]
	timezone string
}

func NewSaleCollection(coll *mongo.Collection, timezone string) *SaleCollection {
	return &SaleCollection{Collection: NewCollection[models.Sale](coll, "Sale"), timezone: timezone}
}

func (s *SaleCollection) Daily(ctx context.Context, from, to time.Time) ([]models.DailySales, error) {
	match := bson.M{"status": bson.M{"$ne": models.SaleStatusCancelled}}
	if r := dateBounds(from, to); r != nil {
		match["date"] = r
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$dateToString": bson.M{
				"format":   dayFormat,
				"date":     "$date",
				"timezone": s.timezone,
			}}},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "total", Value: bson.M{"$sum": "$total"}},
			{Key: "paid", Value: bson.M{"$sum": "$paid"}},
			{Key: "notPaid", Value: bson.M{"$sum": "$notPaid"}},
			{Key: "totalWeight", Value: bson.M{"$sum": "$totalWeight"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err, "aggregate daily sales")
	}
	defer cursor.Close(ctx)

	out := []models.DailySales{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Internal(err, "decode daily sales")
	}
	return out, nil
}

func dateBounds(from, to time.Time) bson.M {
	r := bson.M{}
	if !from.IsZero() {
		r["$gte"] = from
	}
	if !to.IsZero() {
		r["$lt"] = to
	}
	if len(r) == 0 {
		return nil
	}
	return r
}

// MemorySales is a Sale store with the daily report, kept in process.
type MemorySales struct {
	*Memory[models.Sale, *models.Sale]
	loc *time.Location
}

func NewMemorySales(loc *time.Location) *MemorySales {
	return &MemorySales{Memory: NewMemory[models.Sale]("Sale"), loc: loc}
}

func (m *MemorySales) Daily(ctx context.Context, from, to time.Time) ([]models.DailySales, error) {
	filter := bson.M{"status": bson.M{"$ne": models.SaleStatusCancelled}}
	if r := dateBounds(from, to); r != nil {
		filter["date"] = r
	}
	sales, err := m.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	days := map[string]*models.DailySales{}
	for _, s := range sales {
		key := s.Date.In(m.loc).Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &models.DailySales{Day: key}
			days[key] = d
		}
		d.Merge(models.DailySales{
			Count:       1,
			Total:       s.Total,
			Paid:        s.Paid,
			NotPaid:     s.NotPaid,
			TotalWeight: s.TotalWeight,
		})
	}

	out := make([]models.DailySales, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}
