package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Amount is a money value. It is stored as a BSON decimal and written to JSON
// as a bare number, so 40.5 survives a round trip exactly.
type Amount struct {
	decimal.Decimal
}

func NewAmount(units int64) Amount { return Amount{decimal.NewFromInt(units)} }

func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d}, nil
}

func (a Amount) Add(b Amount) Amount { return Amount{a.Decimal.Add(b.Decimal)} }

func (a Amount) Sub(b Amount) Amount { return Amount{a.Decimal.Sub(b.Decimal)} }

// Times prices n units.
func (a Amount) Times(n int64) Amount { return Amount{a.Decimal.Mul(decimal.NewFromInt(n))} }

func (a Amount) Cmp(b Amount) int { return a.Decimal.Cmp(b.Decimal) }

func (a Amount) Equal(b Amount) bool { return a.Decimal.Equal(b.Decimal) }

func (a Amount) GreaterThan(b Amount) bool { return a.Decimal.GreaterThan(b.Decimal) }

func (a Amount) LessThan(b Amount) bool { return a.Decimal.LessThan(b.Decimal) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts a number or a quoted number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

func (a Amount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(a.Decimal.String())
	if err != nil {
		return 0, nil, fmt.Errorf("encode amount %s: %w", a.Decimal.String(), err)
	}
	return bson.MarshalValue(d)
}

// UnmarshalBSONValue also reads the plain numbers older documents and
// $sum over them produce.
func (a *Amount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDecimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
		a.Decimal = d
	case bson.TypeInt32:
		a.Decimal = decimal.NewFromInt32(raw.Int32())
	case bson.TypeInt64:
		a.Decimal = decimal.NewFromInt(raw.Int64())
	case bson.TypeDouble:
		a.Decimal = decimal.NewFromFloat(raw.Double())
	case bson.TypeNull, bson.TypeUndefined:
		a.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into an amount", t)
	}
	return nil
}

// SumAmounts folds values into one total.
func SumAmounts[T any](items []T, value func(T) Amount) Amount {
	var total Amount
	for _, it := range items {
		total = total.Add(value(it))
	}
	return total
}
