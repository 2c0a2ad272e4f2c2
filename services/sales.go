package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

const SalesSequence = "sales"

type LineInput struct {
	Article  primitive.ObjectID
	Quantity int64
}

type SaleInput struct {
	Client      primitive.ObjectID
	Lines       []LineInput
	Total       models.Amount
	Description string
	Date        time.Time
}

// Availability reports whether one requested article can be sold.
type Availability struct {
	Article   primitive.ObjectID `json:"article"`
	Name      string             `json:"name"`
	Requested int64              `json:"requested"`
	Available int64              `json:"available"`
	OK        bool               `json:"ok"`
}

type SaleService struct {
	sales    repository.Store[models.Sale]
	articles repository.Store[models.Article]
	clients  ClientStore
	stock    repository.StockStore
	refs     repository.ReferenceAllocator
	tx       Transactor
	log      *zap.Logger
	now      func() time.Time
}

func NewSaleService(
	sales repository.Store[models.Sale],
	articles repository.Store[models.Article],
	clients ClientStore,
	stock repository.StockStore,
	refs repository.ReferenceAllocator,
	tx Transactor,
	log *zap.Logger,
) *SaleService {
	return &SaleService{
		sales:    sales,
		articles: articles,
		clients:  clients,
		stock:    stock,
		refs:     refs,
		tx:       tx,
		log:      log,
		now:      time.Now,
	}
}

// Create records a sale and takes its articles out of stock. Either every
// line is reserved and the sale is stored, or nothing changes.
func (s *SaleService) Create(ctx context.Context, in SaleInput) (*models.Sale, error) {
	if len(in.Lines) == 0 {
		return nil, models.ErrNoLines
	}
	if _, err := s.clients.FindByID(ctx, in.Client); err != nil {
		return nil, err
	}
	lines, names, err := s.resolveLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	var sale *models.Sale
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		sale = &models.Sale{
			Status:      models.SaleStatusPending,
			Client:      in.Client,
			Description: in.Description,
			Date:        in.Date,
			Payments:    []models.Payment{},
		}
		if sale.Date.IsZero() {
			sale.Date = s.now()
		}
		if err := sale.SetLines(lines, in.Total); err != nil {
			return err
		}

		undo := newUndoLog(s.log)
		if err := s.reserve(ctx, lines, names, undo); err != nil {
			undo.rollback(ctx)
			return err
		}

		ref, err := s.refs.Next(ctx, SalesSequence)
		if err != nil {
			undo.rollback(ctx)
			return err
		}
		sale.Ref = ref

		if err := s.sales.Insert(ctx, sale); err != nil {
			undo.rollback(ctx)
			return err
		}
		id := sale.ID
		undo.add("delete sale", func(ctx context.Context) error { return s.sales.Delete(ctx, id) })

		if err := s.clients.AddPurchase(ctx, in.Client, sale.ID); err != nil {
			undo.rollback(ctx)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sale created",
		zap.Int64("ref", sale.Ref),
		zap.String("sale", sale.ID.Hex()),
		zap.Stringer("total", sale.Total),
	)
	return sale, nil
}

// Update replaces the lines, client, total and description of a sale.
// Stock is adjusted by the difference between the old and new lines.
func (s *SaleService) Update(ctx context.Context, id primitive.ObjectID, in SaleInput) (*models.Sale, error) {
	if len(in.Lines) == 0 {
		return nil, models.ErrNoLines
	}
	lines, names, err := s.resolveLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	var sale *models.Sale
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.sales.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status == models.SaleStatusCancelled {
			return models.ErrSaleCancelled
		}

		oldLines, oldTotal, oldClient := sale.Lines, sale.Total, sale.Client
		newClient := oldClient
		if !in.Client.IsZero() {
			newClient = in.Client
		}
		if newClient != oldClient {
			if _, err := s.clients.FindByID(ctx, newClient); err != nil {
				return err
			}
		}
		if err := sale.SetLines(lines, in.Total); err != nil {
			return err
		}

		undo := newUndoLog(s.log)
		if err := s.adjust(ctx, oldLines, lines, names, undo); err != nil {
			undo.rollback(ctx)
			return err
		}

		now := s.now()
		if !oldTotal.Equal(sale.Total) {
			sale.RecordChange(now, "total", oldTotal, sale.Total)
		}
		if in.Description != sale.Description {
			sale.RecordChange(now, "description", sale.Description, in.Description)
			sale.Description = in.Description
		}
		if !in.Date.IsZero() {
			sale.Date = in.Date
		}
		if newClient != oldClient {
			sale.RecordChange(now, "client", oldClient, newClient)
			sale.Client = newClient
		}
		if len(oldLines) != len(lines) || !sameQuantities(oldLines, lines) {
			sale.RecordChange(now, "articles", len(oldLines), len(lines))
		}

		if err := s.sales.Replace(ctx, sale); err != nil {
			undo.rollback(ctx)
			return err
		}

		if newClient != oldClient {
			if err := s.clients.AddPurchase(ctx, newClient, sale.ID); err != nil {
				undo.rollback(ctx)
				return err
			}
			s.removeFromClient(ctx, oldClient, sale.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// SetStatus moves a sale through its lifecycle. Cancelling returns the
// sale's articles to stock.
func (s *SaleService) SetStatus(ctx context.Context, id primitive.ObjectID, next models.SaleStatus) (*models.Sale, error) {
	var sale *models.Sale
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.sales.FindByID(ctx, id)
		if err != nil {
			return err
		}
		prev := sale.Status
		if err := sale.TransitionTo(next); err != nil {
			return err
		}
		if prev == next {
			return nil
		}
		sale.RecordChange(s.now(), "status", prev, next)

		undo := newUndoLog(s.log)
		if next == models.SaleStatusCancelled {
			if err := s.release(ctx, sale.Lines, undo); err != nil {
				undo.rollback(ctx)
				return err
			}
		}
		if err := s.sales.Replace(ctx, sale); err != nil {
			undo.rollback(ctx)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Delete removes a sale. Articles of a sale that was not cancelled go back
// to stock, and the sale leaves its client's purchase list.
func (s *SaleService) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.sales.FindByID(ctx, id)
		if err != nil {
			return err
		}

		undo := newUndoLog(s.log)
		if sale.Status != models.SaleStatusCancelled {
			if err := s.release(ctx, sale.Lines, undo); err != nil {
				undo.rollback(ctx)
				return err
			}
		}
		if err := s.sales.Delete(ctx, id); err != nil {
			undo.rollback(ctx)
			return err
		}
		s.removeFromClient(ctx, sale.Client, sale.ID)
		return nil
	})
}

// VerifyQuantities checks the requested lines against stock without
// changing anything.
func (s *SaleService) VerifyQuantities(ctx context.Context, in []LineInput) ([]Availability, bool, error) {
	if len(in) == 0 {
		return nil, false, models.ErrNoLines
	}
	lines, names, err := s.resolveLines(ctx, in)
	if err != nil {
		return nil, false, err
	}

	all := true
	out := []Availability{}
	qty := models.Quantities(lines)
	for _, article := range orderedArticles(lines) {
		requested := qty[article]
		var available int64
		st, err := s.stock.FindByArticle(ctx, article)
		switch {
		case err == nil:
			available = st.Stock
		case apperr.KindOf(err) != apperr.KindNotFound:
			return nil, false, err
		}
		ok := available >= requested
		all = all && ok
		out = append(out, Availability{
			Article:   article,
			Name:      names[article],
			Requested: requested,
			Available: available,
			OK:        ok,
		})
	}
	return out, all, nil
}

func (s *SaleService) AddPayment(ctx context.Context, id primitive.ObjectID, p models.Payment) (*models.Sale, error) {
	if p.Date.IsZero() {
		p.Date = s.now()
	}
	return s.mutatePayments(ctx, id, func(sale *models.Sale) error {
		return sale.AddPayment(p)
	})
}

func (s *SaleService) EditPayment(ctx context.Context, id, paymentID primitive.ObjectID, p models.Payment) (*models.Sale, error) {
	return s.mutatePayments(ctx, id, func(sale *models.Sale) error {
		return sale.EditPayment(paymentID, p)
	})
}

func (s *SaleService) DeletePayment(ctx context.Context, id, paymentID primitive.ObjectID) (*models.Sale, error) {
	return s.mutatePayments(ctx, id, func(sale *models.Sale) error {
		return sale.RemovePayment(paymentID)
	})
}

// mutatePayments loads the sale, applies fn and writes it back. The write
// is guarded by the sale's version, so two concurrent payments can never
// both pass the overpayment check against the same balance.
func (s *SaleService) mutatePayments(ctx context.Context, id primitive.ObjectID, fn func(*models.Sale) error) (*models.Sale, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sale); err != nil {
		return nil, err
	}
	if err := s.sales.Replace(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

// resolveLines loads every article and snapshots its price and weight.
func (s *SaleService) resolveLines(ctx context.Context, in []LineInput) ([]models.SaleLine, map[primitive.ObjectID]string, error) {
	lines := make([]models.SaleLine, 0, len(in))
	names := make(map[primitive.ObjectID]string, len(in))
	for _, l := range in {
		if l.Quantity < 1 {
			return nil, nil, apperr.Validation("Quantity for article %s must be at least 1", l.Article.Hex())
		}
		article, err := s.articles.FindByID(ctx, l.Article)
		if err != nil {
			return nil, nil, err
		}
		names[article.ID] = article.Name
		lines = append(lines, models.SaleLine{
			Article:   article.ID,
			Quantity:  l.Quantity,
			UnitPrice: article.SellPrice,
			Weight:    article.Weight,
		})
	}
	return lines, names, nil
}

// reserve checks every line before touching stock, then decrements. The
// conditional decrement still guards against a sale racing in between.
func (s *SaleService) reserve(ctx context.Context, lines []models.SaleLine, names map[primitive.ObjectID]string, undo *undoLog) error {
	return s.take(ctx, models.Quantities(lines), orderedArticles(lines), names, undo)
}

func (s *SaleService) take(ctx context.Context, qty map[primitive.ObjectID]int64, order []primitive.ObjectID, names map[primitive.ObjectID]string, undo *undoLog) error {
	for _, article := range order {
		want := qty[article]
		if want <= 0 {
			continue
		}
		st, err := s.stock.FindByArticle(ctx, article)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.Validation("Article %s is not in stock", label(names, article))
			}
			return err
		}
		if st.Stock < want {
			return insufficient(names, article, want, st.Stock)
		}
	}

	for _, article := range order {
		want := qty[article]
		if want <= 0 {
			continue
		}
		if err := s.stock.Decrement(ctx, article, want); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return insufficient(names, article, want, -1)
			}
			return err
		}
		undo.add("restock "+article.Hex(), func(ctx context.Context) error {
			return s.stock.Increment(ctx, article, want)
		})
	}
	return nil
}

// release puts the quantities of lines back into stock.
func (s *SaleService) release(ctx context.Context, lines []models.SaleLine, undo *undoLog) error {
	qty := models.Quantities(lines)
	for _, article := range orderedArticles(lines) {
		n := qty[article]
		if err := s.stock.Increment(ctx, article, n); err != nil {
			return err
		}
		undo.add("take back "+article.Hex(), func(ctx context.Context) error {
			return s.stock.Decrement(ctx, article, n)
		})
	}
	return nil
}

// adjust moves stock by the difference between two sets of lines.
func (s *SaleService) adjust(ctx context.Context, oldLines, newLines []models.SaleLine, names map[primitive.ObjectID]string, undo *undoLog) error {
	oldQty, newQty := models.Quantities(oldLines), models.Quantities(newLines)

	more := map[primitive.ObjectID]int64{}
	for article, n := range newQty {
		if d := n - oldQty[article]; d > 0 {
			more[article] = d
		}
	}
	if err := s.take(ctx, more, orderedArticles(newLines), names, undo); err != nil {
		return err
	}

	for _, article := range orderedArticles(append(append([]models.SaleLine{}, oldLines...), newLines...)) {
		d := oldQty[article] - newQty[article]
		if d <= 0 {
			continue
		}
		if err := s.stock.Increment(ctx, article, d); err != nil {
			return err
		}
		undo.add("take back "+article.Hex(), func(ctx context.Context) error {
			return s.stock.Decrement(ctx, article, d)
		})
	}
	return nil
}

func (s *SaleService) removeFromClient(ctx context.Context, client, sale primitive.ObjectID) {
	err := s.clients.RemovePurchase(ctx, client, sale)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		s.log.Warn("could not unlink sale from client",
			zap.String("client", client.Hex()),
			zap.String("sale", sale.Hex()),
			zap.Error(err),
		)
	}
}

// orderedArticles lists distinct articles in the order they first appear.
func orderedArticles(lines []models.SaleLine) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(lines))
	out := make([]primitive.ObjectID, 0, len(lines))
	for _, l := range lines {
		if !seen[l.Article] {
			seen[l.Article] = true
			out = append(out, l.Article)
		}
	}
	return out
}

func sameQuantities(a, b []models.SaleLine) bool {
	qa, qb := models.Quantities(a), models.Quantities(b)
	if len(qa) != len(qb) {
		return false
	}
	for k, v := range qa {
		if qb[k] != v {
			return false
		}
	}
	return true
}

func label(names map[primitive.ObjectID]string, id primitive.ObjectID) string {
	if n := names[id]; n != "" {
		return n
	}
	return id.Hex()
}

func insufficient(names map[primitive.ObjectID]string, article primitive.ObjectID, want, have int64) error {
	if have < 0 {
		return apperr.Validation("Insufficient stock for article %s: requested %d", label(names, article), want)
	}
	return apperr.Validation("Insufficient stock for article %s: requested %d, available %d",
		label(names, article), want, have)
}
