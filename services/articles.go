package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

const PurchasesSequence = "purchases"

// StockRows is the part of the stock collection the article service needs
// beyond StockStore: listings read counts in bulk and a deleted article
// takes its stock row with it.
type StockRows interface {
	repository.StockStore
	repository.StockView
	DeleteByArticle(ctx context.Context, article primitive.ObjectID) error
}

// ArticleService keeps articles, their stock rows, purchases and the
// denormalized article lists on suppliers and catalogs in step.
type ArticleService struct {
	articles         repository.Store[models.Article]
	purchases        repository.Store[models.Purchase]
	colors           repository.Store[models.Color]
	catalogs         repository.Store[models.Catalog]
	suppliers        repository.Store[models.Supplier]
	stock            StockRows
	sales            repository.Store[models.Sale]
	refs             repository.ReferenceAllocator
	supplierArticles repository.Linker
	catalogArticles  repository.Linker
	ensembleArticles repository.Linker
	tx               Transactor
	log              *zap.Logger
}

type ArticleDeps struct {
	Articles         repository.Store[models.Article]
	Purchases        repository.Store[models.Purchase]
	Colors           repository.Store[models.Color]
	Catalogs         repository.Store[models.Catalog]
	Suppliers        repository.Store[models.Supplier]
	Stock            StockRows
	Sales            repository.Store[models.Sale]
	Refs             repository.ReferenceAllocator
	SupplierArticles repository.Linker
	CatalogArticles  repository.Linker
	EnsembleArticles repository.Linker
	Tx               Transactor
	Log              *zap.Logger
}

func NewArticleService(d ArticleDeps) *ArticleService {
	return &ArticleService{
		articles:         d.Articles,
		purchases:        d.Purchases,
		colors:           d.Colors,
		catalogs:         d.Catalogs,
		suppliers:        d.Suppliers,
		stock:            d.Stock,
		sales:            d.Sales,
		refs:             d.Refs,
		supplierArticles: d.SupplierArticles,
		catalogArticles:  d.CatalogArticles,
		ensembleArticles: d.EnsembleArticles,
		tx:               d.Tx,
		log:              d.Log,
	}
}

// Create stores a new article bought in count units: the article itself,
// its purchase record and its stock row.
func (s *ArticleService) Create(ctx context.Context, article *models.Article, count int64) (*models.Article, *models.Purchase, error) {
	if err := article.Validate(); err != nil {
		return nil, nil, err
	}
	if count < 1 {
		return nil, nil, apperr.Validation("countArticle must be at least 1")
	}
	if err := s.checkReferences(ctx, article); err != nil {
		return nil, nil, err
	}
	if article.Date.IsZero() {
		article.Date = time.Now()
	}
	article.Status = true

	var purchase *models.Purchase
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		undo := newUndoLog(s.log)

		article.ID = primitive.NilObjectID
		if err := s.articles.Insert(ctx, article); err != nil {
			return err
		}
		id := article.ID
		undo.add("delete article", func(ctx context.Context) error { return s.articles.Delete(ctx, id) })

		if err := s.supplierArticles.Add(ctx, article.Supplier, id); err != nil {
			undo.rollback(ctx)
			return err
		}
		undo.add("unlink supplier", func(ctx context.Context) error {
			return s.supplierArticles.Remove(ctx, article.Supplier, id)
		})
		if err := s.catalogArticles.Add(ctx, article.Catalog, id); err != nil {
			undo.rollback(ctx)
			return err
		}
		undo.add("unlink catalog", func(ctx context.Context) error {
			return s.catalogArticles.Remove(ctx, article.Catalog, id)
		})

		var err error
		purchase, err = s.recordPurchase(ctx, article, count, undo)
		if err != nil {
			undo.rollback(ctx)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	article.CountArticle = count
	s.log.Info("article created",
		zap.String("article", article.ID.Hex()),
		zap.Int64("purchaseRef", purchase.Ref),
		zap.Int64("count", count),
	)
	return article, purchase, nil
}

// Restock records a new purchase of an existing article.
func (s *ArticleService) Restock(ctx context.Context, articleID primitive.ObjectID, count int64) (*models.Purchase, error) {
	if count < 1 {
		return nil, apperr.Validation("countArticle must be at least 1")
	}
	article, err := s.articles.FindByID(ctx, articleID)
	if err != nil {
		return nil, err
	}

	var purchase *models.Purchase
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		undo := newUndoLog(s.log)
		var err error
		purchase, err = s.recordPurchase(ctx, article, count, undo)
		if err != nil {
			undo.rollback(ctx)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *ArticleService) recordPurchase(ctx context.Context, article *models.Article, count int64, undo *undoLog) (*models.Purchase, error) {
	purchase, err := models.NewPurchase(article, count)
	if err != nil {
		return nil, err
	}
	ref, err := s.refs.Next(ctx, PurchasesSequence)
	if err != nil {
		return nil, err
	}
	purchase.Ref = ref

	if err := s.purchases.Insert(ctx, purchase); err != nil {
		return nil, err
	}
	pid := purchase.ID
	undo.add("delete purchase", func(ctx context.Context) error { return s.purchases.Delete(ctx, pid) })

	if err := s.stock.Increment(ctx, article.ID, count); err != nil {
		return nil, err
	}
	return purchase, nil
}

// List returns the articles matching filter with their on-hand quantity.
func (s *ArticleService) List(ctx context.Context, filter bson.M) ([]models.Article, error) {
	articles, err := s.articles.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
	}
	qty, err := s.stock.Quantities(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		articles[i].CountArticle = qty[articles[i].ID]
	}
	return articles, nil
}

// Get returns an article with its on-hand quantity.
func (s *ArticleService) Get(ctx context.Context, id primitive.ObjectID) (*models.Article, error) {
	article, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := s.stock.FindByArticle(ctx, id)
	switch {
	case err == nil:
		article.CountArticle = st.Stock
	case apperr.KindOf(err) != apperr.KindNotFound:
		return nil, err
	}
	return article, nil
}

// Update applies edits to an article and moves it between suppliers and
// catalogs when those change.
func (s *ArticleService) Update(ctx context.Context, prev, next *models.Article) (*models.Article, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, next); err != nil {
		return nil, err
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		undo := newUndoLog(s.log)
		if prev.Supplier != next.Supplier {
			if err := s.move(ctx, s.supplierArticles, prev.Supplier, next.Supplier, next.ID, undo); err != nil {
				undo.rollback(ctx)
				return err
			}
		}
		if prev.Catalog != next.Catalog {
			if err := s.move(ctx, s.catalogArticles, prev.Catalog, next.Catalog, next.ID, undo); err != nil {
				undo.rollback(ctx)
				return err
			}
		}
		if err := s.articles.Replace(ctx, next); err != nil {
			undo.rollback(ctx)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *ArticleService) move(ctx context.Context, l repository.Linker, from, to, id primitive.ObjectID, undo *undoLog) error {
	if err := l.Add(ctx, to, id); err != nil {
		return err
	}
	undo.add("unlink new parent", func(ctx context.Context) error { return l.Remove(ctx, to, id) })
	err := l.Remove(ctx, from, id)
	switch {
	case err == nil:
		undo.add("relink old parent", func(ctx context.Context) error { return l.Add(ctx, from, id) })
	case apperr.KindOf(err) != apperr.KindNotFound:
		return err
	}
	return nil
}

// ErrArticleInOpenSale blocks deleting an article a live sale still lists:
// cancelling that sale would give the units back to a stock row that no
// longer has an article.
var ErrArticleInOpenSale = apperr.Conflict("Article is part of a sale that is not cancelled")

// Delete removes an article everywhere it is referenced. Cancelled sales
// keep their line snapshot; any other sale listing it is a Conflict.
func (s *ArticleService) Delete(ctx context.Context, id primitive.ObjectID) (*models.Article, error) {
	var article *models.Article
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		article, err = s.articles.FindByID(ctx, id)
		if err != nil {
			return err
		}
		inSale, err := s.sales.Exists(ctx, bson.M{
			"articles.article": id,
			"status":           bson.M{"$ne": models.SaleStatusCancelled},
		})
		if err != nil {
			return err
		}
		if inSale {
			return ErrArticleInOpenSale
		}

		st, err := s.stock.FindByArticle(ctx, id)
		switch {
		case err == nil:
			article.CountArticle = st.Stock
		case apperr.KindOf(err) != apperr.KindNotFound:
			return err
		}

		undo := newUndoLog(s.log)
		if err := s.articles.Delete(ctx, id); err != nil {
			return err
		}
		restored := *article
		undo.add("restore article", func(ctx context.Context) error { return s.articles.Insert(ctx, &restored) })

		for _, l := range []repository.Linker{s.supplierArticles, s.catalogArticles, s.ensembleArticles} {
			parents, err := l.RemoveEverywhere(ctx, id)
			if err != nil {
				undo.rollback(ctx)
				return err
			}
			undo.add("relink article", func(ctx context.Context) error {
				for _, p := range parents {
					if err := l.Add(ctx, p, id); err != nil {
						return err
					}
				}
				return nil
			})
		}

		if err := s.stock.DeleteByArticle(ctx, id); err != nil {
			undo.rollback(ctx)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("article deleted", zap.String("article", id.Hex()), zap.Int64("stock", article.CountArticle))
	return article, nil
}

func (s *ArticleService) checkReferences(ctx context.Context, a *models.Article) error {
	if _, err := s.colors.FindByID(ctx, a.Color); err != nil {
		return err
	}
	if _, err := s.catalogs.FindByID(ctx, a.Catalog); err != nil {
		return err
	}
	if _, err := s.suppliers.FindByID(ctx, a.Supplier); err != nil {
		return err
	}
	return nil
}

// ResolveCatalogName turns a catalog name filter into its id, as the list
// endpoint filters by name. An unknown name is a NotFound.
func (s *ArticleService) ResolveCatalogName(ctx context.Context, name string) (primitive.ObjectID, error) {
	c, err := s.catalogs.FindOne(ctx, bson.M{"name": name})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return primitive.NilObjectID, apperr.NotFound("Catalog not found")
		}
		return primitive.NilObjectID, err
	}
	return c.ID, nil
}
