package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "Pending"
	SaleStatusDone      SaleStatus = "Done"
	SaleStatusCancelled SaleStatus = "Cancelled"
)

var saleTransitions = map[SaleStatus][]SaleStatus{
	SaleStatusPending: {SaleStatusDone, SaleStatusCancelled},
	SaleStatusDone:    {SaleStatusCancelled},
}

func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusPending, SaleStatusDone, SaleStatusCancelled:
		return true
	}
	return false
}

func (s SaleStatus) CanTransitionTo(next SaleStatus) bool {
	for _, allowed := range saleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "Espèces"
	PaymentCheque   PaymentMethod = "Chèque"
	PaymentCard     PaymentMethod = "Carte"
	PaymentTransfer PaymentMethod = "Virement"
)

type Payment struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Method      PaymentMethod      `bson:"method" json:"method"`
	Amount      Amount             `bson:"amount" json:"amount"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time          `bson:"date" json:"date"`
}

func (p Payment) validate() error {
	if p.Method == "" {
		return apperr.Validation("Payment method is required")
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// SaleLine is one article of a sale. Price and weight are copied from the
// article when the sale is written so later article edits do not rewrite history.
type SaleLine struct {
	Article   primitive.ObjectID `bson:"article" json:"article"`
	Quantity  int64              `bson:"quantity" json:"quantity"`
	UnitPrice Amount             `bson:"unitPrice" json:"unitPrice"`
	Weight    float64            `bson:"weight" json:"weight"`
}

type SaleHistory struct {
	Date     time.Time   `bson:"date" json:"date"`
	Field    string      `bson:"field" json:"field"`
	OldValue interface{} `bson:"oldValue" json:"oldValue"`
	NewValue interface{} `bson:"newValue" json:"newValue"`
}

type Sale struct {
	Base        `bson:",inline"`
	Ref         int64              `bson:"ref" json:"ref"`
	Status      SaleStatus         `bson:"status" json:"status"`
	Description string             `bson:"description" json:"description"`
	Lines       []SaleLine         `bson:"articles" json:"articles"`
	Client      primitive.ObjectID `bson:"client" json:"client"`
	TotalWeight float64            `bson:"totalWeight" json:"totalWeight"`
	Total       Amount             `bson:"total" json:"total"`
	Paid        Amount             `bson:"paid" json:"paid"`
	NotPaid     Amount             `bson:"notPaid" json:"notPaid"`
	Payments    []Payment          `bson:"payment" json:"payment"`
	Date        time.Time          `bson:"date" json:"date"`
	Modified    bool               `bson:"modified" json:"modified"`
	History     []SaleHistory      `bson:"history,omitempty" json:"history,omitempty"`
}

var (
	ErrOverpayment     = apperr.Validation("Payment amount exceeds the outstanding balance")
	ErrInvalidAmount   = apperr.Validation("Payment amount must be greater than 0")
	ErrPaymentNotFound = apperr.NotFound("Payment not found")
	ErrSaleCancelled   = apperr.Validation("Cancelled sales cannot be modified")
	ErrTotalBelowPaid  = apperr.Validation("Sale total cannot be lower than the amount already paid")
	ErrNoLines         = apperr.Validation("Cannot create a Sale with no Articles")
)

// SetLines replaces the sale's lines and totals. A positive total overrides
// the computed price, e.g. for a negotiated discount.
func (s *Sale) SetLines(lines []SaleLine, total Amount) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	var computed Amount
	var weight float64
	for _, l := range lines {
		computed = computed.Add(l.UnitPrice.Times(l.Quantity))
		weight += l.Weight * float64(l.Quantity)
	}
	if !total.IsPositive() {
		total = computed
	}

	s.Reconcile()
	if total.LessThan(s.Paid) {
		return ErrTotalBelowPaid
	}

	s.Lines = lines
	s.Total = total
	s.TotalWeight = weight
	s.Reconcile()
	return nil
}

// Reconcile recomputes Paid and NotPaid from the full payment list.
func (s *Sale) Reconcile() {
	paid := SumAmounts(s.Payments, func(p Payment) Amount { return p.Amount })
	s.Paid = paid
	s.NotPaid = s.Total.Sub(paid)
}

func (s *Sale) AddPayment(p Payment) error {
	if s.Status == SaleStatusCancelled {
		return ErrSaleCancelled
	}
	if err := p.validate(); err != nil {
		return err
	}
	s.Reconcile()
	if p.Amount.GreaterThan(s.NotPaid) {
		return ErrOverpayment
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.Payments = append(s.Payments, p)
	s.Reconcile()
	return nil
}

// EditPayment replaces the payment with the given id. The edited amount
// may not push the paid sum above the total.
func (s *Sale) EditPayment(id primitive.ObjectID, p Payment) error {
	if s.Status == SaleStatusCancelled {
		return ErrSaleCancelled
	}
	if err := p.validate(); err != nil {
		return err
	}
	idx := s.paymentIndex(id)
	if idx < 0 {
		return ErrPaymentNotFound
	}

	var others Amount
	for i, existing := range s.Payments {
		if i != idx {
			others = others.Add(existing.Amount)
		}
	}
	if others.Add(p.Amount).GreaterThan(s.Total) {
		return ErrOverpayment
	}

	p.ID = id
	if p.Date.IsZero() {
		p.Date = s.Payments[idx].Date
	}
	s.Payments[idx] = p
	s.Reconcile()
	return nil
}

func (s *Sale) RemovePayment(id primitive.ObjectID) error {
	if s.Status == SaleStatusCancelled {
		return ErrSaleCancelled
	}
	idx := s.paymentIndex(id)
	if idx < 0 {
		return ErrPaymentNotFound
	}
	s.Payments = append(s.Payments[:idx], s.Payments[idx+1:]...)
	s.Reconcile()
	return nil
}

func (s *Sale) paymentIndex(id primitive.ObjectID) int {
	for i, p := range s.Payments {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// TransitionTo moves the sale along Pending -> Done -> Cancelled.
// Moving to the current status is a no-op.
func (s *Sale) TransitionTo(next SaleStatus) error {
	if !next.Valid() {
		return apperr.Validation("Unknown sale status %q", next)
	}
	if s.Status == next {
		return nil
	}
	if !s.Status.CanTransitionTo(next) {
		return apperr.Validation("Cannot move a sale from %s to %s", s.Status, next)
	}
	s.Status = next
	return nil
}

// RecordChange appends an edit to the sale's history.
func (s *Sale) RecordChange(now time.Time, field string, oldValue, newValue interface{}) {
	s.History = append(s.History, SaleHistory{
		Date:     now,
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
	})
	s.Modified = true
}

// Quantities sums the requested quantity per article.
func Quantities(lines []SaleLine) map[primitive.ObjectID]int64 {
	out := make(map[primitive.ObjectID]int64, len(lines))
	for _, l := range lines {
		out[l.Article] += l.Quantity
	}
	return out
}

// DailySales totals the sales of one calendar day, the way a till is
// counted at closing time. Cancelled sales are left out.
type DailySales struct {
	Day         string  `bson:"_id" json:"day"`
	Count       int64   `bson:"count" json:"count"`
	Total       Amount  `bson:"total" json:"total"`
	Paid        Amount  `bson:"paid" json:"paid"`
	NotPaid     Amount  `bson:"notPaid" json:"notPaid"`
	TotalWeight float64 `bson:"totalWeight" json:"totalWeight"`
}

// Merge adds o's counters to d. The day key is left alone.
func (d *DailySales) Merge(o DailySales) {
	d.Count += o.Count
	d.Total = d.Total.Add(o.Total)
	d.Paid = d.Paid.Add(o.Paid)
	d.NotPaid = d.NotPaid.Add(o.NotPaid)
	d.TotalWeight += o.TotalWeight
}
