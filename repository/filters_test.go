package repository

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
)

func TestNameSearchTwoWords(t *testing.T) {
	f := NameSearch("  Amel  Ben ", "firstName", "lastName", "phone")

	or := f["$or"].(bson.A)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{
		"firstName": primitive.Regex{Pattern: "Amel", Options: "i"},
		"lastName":  primitive.Regex{Pattern: "Ben", Options: "i"},
	}, or[0])
	assert.Equal(t, bson.M{
		"firstName": primitive.Regex{Pattern: "Ben", Options: "i"},
		"lastName":  primitive.Regex{Pattern: "Amel", Options: "i"},
	}, or[1])
}

func TestNameSearchSingleWordIncludesPhone(t *testing.T) {
	f := NameSearch("0550", "firstName", "lastName", "phone")

	or := f["$or"].(bson.A)
	require.Len(t, or, 3)
	assert.Equal(t, bson.M{"phone": primitive.Regex{Pattern: "0550", Options: "i"}}, or[2])
}

func TestNameSearchQuotesRegex(t *testing.T) {
	f := NameSearch("a.b*", "firstName", "lastName", "")

	or := f["$or"].(bson.A)
	require.Len(t, or, 2)
	assert.Equal(t, `a\.b\*`, or[0].(bson.M)["firstName"].(primitive.Regex).Pattern)
}

func TestNameSearchEmpty(t *testing.T) {
	assert.Nil(t, NameSearch("   ", "firstName", "lastName", "phone"))
}

func TestDateRangeSingleDay(t *testing.T) {
	f, err := DateRange(url.Values{"date": {"2024-03-10"}}, "createdAt")
	require.NoError(t, err)

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, bson.M{"createdAt": bson.M{"$gte": day, "$lt": day.AddDate(0, 0, 1)}}, f)
}

func TestDateRangeEndIsInclusive(t *testing.T) {
	q := url.Values{"startDate": {"2024-03-01"}, "endDate": {"2024-03-31"}}
	f, err := DateRange(q, "createdAt")
	require.NoError(t, err)

	cond := f["createdAt"].(bson.M)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), cond["$gte"])
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), cond["$lt"])
}

func TestDateRangeRejectsBadDate(t *testing.T) {
	_, err := DateRange(url.Values{"endDate": {"31/03/2024"}}, "createdAt")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDateRangeAbsent(t *testing.T) {
	f, err := DateRange(url.Values{}, "createdAt")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestNumberAndBool(t *testing.T) {
	q := url.Values{"weight": {"2.5"}, "sellPrice": {"1200"}, "status": {"false"}, "bad": {"x"}}

	f, err := Number(q, "weight", "weight")
	require.NoError(t, err)
	assert.Equal(t, bson.M{"weight": 2.5}, f)

	f, err = Number(q, "sellPrice", "sellPrice")
	require.NoError(t, err)
	assert.Equal(t, bson.M{"sellPrice": int64(1200)}, f)

	f, err = Bool(q, "status", "status")
	require.NoError(t, err)
	assert.Equal(t, bson.M{"status": false}, f)

	_, err = Number(q, "bad", "weight")
	assert.Error(t, err)
}

func TestAndMergesDisjointKeys(t *testing.T) {
	f := And(bson.M{"status": true}, nil, bson.M{"color": "gold"})
	assert.Equal(t, bson.M{"status": true, "color": "gold"}, f)
}

func TestAndKeepsOverlappingClausesApart(t *testing.T) {
	a := bson.M{"$or": bson.A{bson.M{"x": 1}}}
	b := bson.M{"$or": bson.A{bson.M{"y": 2}}}

	f := And(a, b)
	assert.Equal(t, bson.M{"$and": bson.A{a, b}}, f)
}

func TestBuilderKeepsFirstError(t *testing.T) {
	q := url.Values{"status": {"maybe"}, "client": {"nothex"}}
	b := &Builder{}
	b.Try(Bool(q, "status", "status"))
	b.Try(ObjectID(q, "client", "client"))

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "status")
}

func TestBuilderEmpty(t *testing.T) {
	f, err := (&Builder{}).Build()
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, f)
}
