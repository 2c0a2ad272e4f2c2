package repository

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
)

const dateLayout = "2006-01-02"

// Query is the subset of request parameters the filter builders read.
// url.Values and gin's c.Query both fit through QueryFunc.
type Query interface {
	Get(key string) string
}

type QueryFunc func(key string) string

func (f QueryFunc) Get(key string) string { return f(key) }

func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// NameSearch matches people by free text. "amel ben" matches
// firstName~amel and lastName~ben in either order; a single word matches
// either name field or the phone number.
func NameSearch(text, firstField, lastField, phoneField string) bson.M {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) == 1 {
		or := bson.A{
			bson.M{firstField: contains(words[0])},
			bson.M{lastField: contains(words[0])},
		}
		if phoneField != "" {
			or = append(or, bson.M{phoneField: contains(words[0])})
		}
		return bson.M{"$or": or}
	}

	first, last := words[0], strings.Join(words[1:], " ")
	return bson.M{"$or": bson.A{
		bson.M{firstField: contains(first), lastField: contains(last)},
		bson.M{firstField: contains(last), lastField: contains(first)},
	}}
}

// Contains is a case-insensitive partial match on one field.
func Contains(field, text string) bson.M {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return bson.M{field: contains(text)}
}

// DateRange filters field by "date" (one calendar day) or by a
// "startDate"/"endDate" pair. The end date is inclusive.
func DateRange(q Query, field string) (bson.M, error) {
	if d := q.Get("date"); d != "" {
		day, err := time.Parse(dateLayout, d)
		if err != nil {
			return nil, apperr.Validation("date must be formatted as YYYY-MM-DD")
		}
		return bson.M{field: bson.M{"$gte": day, "$lt": day.AddDate(0, 0, 1)}}, nil
	}

	start, end := q.Get("startDate"), q.Get("endDate")
	if start == "" && end == "" {
		return nil, nil
	}
	cond := bson.M{}
	if start != "" {
		from, err := time.Parse(dateLayout, start)
		if err != nil {
			return nil, apperr.Validation("startDate must be formatted as YYYY-MM-DD")
		}
		cond["$gte"] = from
	}
	if end != "" {
		to, err := time.Parse(dateLayout, end)
		if err != nil {
			return nil, apperr.Validation("endDate must be formatted as YYYY-MM-DD")
		}
		cond["$lt"] = to.AddDate(0, 0, 1)
	}
	return bson.M{field: cond}, nil
}

func Bool(q Query, param, field string) (bson.M, error) {
	v := q.Get(param)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation("%s must be true or false", param)
	}
	return bson.M{field: b}, nil
}

func Number(q Query, param, field string) (bson.M, error) {
	v := q.Get(param)
	if v == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return bson.M{field: n}, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, apperr.Validation("%s must be a number", param)
	}
	return bson.M{field: f}, nil
}

func Equal(q Query, param, field string) bson.M {
	v := q.Get(param)
	if v == "" {
		return nil
	}
	return bson.M{field: v}
}

func ObjectID(q Query, param, field string) (bson.M, error) {
	v := q.Get(param)
	if v == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(v)
	if err != nil {
		return nil, apperr.Validation("%s is not a valid id", param)
	}
	return bson.M{field: id}, nil
}

// And merges non-empty clauses into one filter. Clauses that share a key
// are kept apart under $and.
func And(clauses ...bson.M) bson.M {
	var parts bson.A
	for _, c := range clauses {
		if len(c) > 0 {
			parts = append(parts, c)
		}
	}
	switch len(parts) {
	case 0:
		return bson.M{}
	case 1:
		return parts[0].(bson.M)
	}

	merged := bson.M{}
	for _, p := range parts {
		for k, v := range p.(bson.M) {
			if _, dup := merged[k]; dup {
				return bson.M{"$and": parts}
			}
			merged[k] = v
		}
	}
	return merged
}

// Builder collects clauses and the first parse error.
type Builder struct {
	clauses []bson.M
	err     error
}

func (b *Builder) Add(m bson.M) *Builder {
	b.clauses = append(b.clauses, m)
	return b
}

func (b *Builder) Try(m bson.M, err error) *Builder {
	if err != nil && b.err == nil {
		b.err = err
	}
	return b.Add(m)
}

func (b *Builder) Build() (bson.M, error) {
	if b.err != nil {
		return nil, b.err
	}
	return And(b.clauses...), nil
}
