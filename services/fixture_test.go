package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/database"
	"bijouterie-backoffice/logger"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

type fixture struct {
	sales     *repository.Memory[models.Sale, *models.Sale]
	articles  *repository.Memory[models.Article, *models.Article]
	purchases *repository.Memory[models.Purchase, *models.Purchase]
	colors    *repository.Memory[models.Color, *models.Color]
	catalogs  *repository.Memory[models.Catalog, *models.Catalog]
	suppliers *repository.Memory[models.Supplier, *models.Supplier]
	clients   *repository.MemoryClients
	stock     *faultyStock
	refs      *repository.MemoryCounters

	supplierArticles *repository.MemoryLinker
	catalogArticles  *repository.MemoryLinker
	ensembleArticles *repository.MemoryLinker

	color, catalog, otherCatalog, supplier primitive.ObjectID

	saleSvc    *SaleService
	articleSvc *ArticleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		sales:     repository.NewMemory[models.Sale]("Sale"),
		articles:  repository.NewMemory[models.Article]("Article"),
		purchases: repository.NewMemory[models.Purchase]("Purchase"),
		colors:    repository.NewMemory[models.Color]("Color"),
		catalogs:  repository.NewMemory[models.Catalog]("Catalog"),
		suppliers: repository.NewMemory[models.Supplier]("Supplier"),
		clients:   repository.NewMemoryClients(),
		stock:     &faultyStock{MemoryStock: repository.NewMemoryStock()},
		refs:      repository.NewMemoryCounters(),
	}

	color := &models.Color{Name: "or", Hex: "#FFD700"}
	require.NoError(t, f.colors.Insert(ctx, color))
	catalog := &models.Catalog{Name: "Mariage", Description: "parures", Status: true}
	require.NoError(t, f.catalogs.Insert(ctx, catalog))
	other := &models.Catalog{Name: "Fiançailles", Description: "bagues", Status: true}
	require.NoError(t, f.catalogs.Insert(ctx, other))
	supplier := &models.Supplier{LastName: "atlas", Email: "atlas@example.dz", Status: true}
	require.NoError(t, f.suppliers.Insert(ctx, supplier))
	f.color, f.catalog, f.otherCatalog, f.supplier = color.ID, catalog.ID, other.ID, supplier.ID

	f.supplierArticles = repository.NewMemoryLinker("Supplier", f.supplier)
	f.catalogArticles = repository.NewMemoryLinker("Catalog", f.catalog, f.otherCatalog)
	f.ensembleArticles = repository.NewMemoryLinker("Ensemble")

	log := logger.Nop()
	f.saleSvc = NewSaleService(f.sales, f.articles, f.clients, f.stock, f.refs, database.Direct{}, log)
	f.articleSvc = NewArticleService(ArticleDeps{
		Articles:         f.articles,
		Purchases:        f.purchases,
		Colors:           f.colors,
		Catalogs:         f.catalogs,
		Suppliers:        f.suppliers,
		Stock:            f.stock,
		Sales:            f.sales,
		Refs:             f.refs,
		SupplierArticles: f.supplierArticles,
		CatalogArticles:  f.catalogArticles,
		EnsembleArticles: f.ensembleArticles,
		Tx:               database.Direct{},
		Log:              log,
	})
	return f
}

// article stores an article priced at price with qty units on hand.
func (f *fixture) article(t *testing.T, name string, price, qty int64) primitive.ObjectID {
	t.Helper()
	a := &models.Article{
		Name:        name,
		Description: name,
		Weight:      2,
		TypeArticle: models.ArticleRing,
		Color:       f.color,
		Catalog:     f.catalog,
		Supplier:    f.supplier,
		SellPrice:   models.NewAmount(price),
		BuyPrice:    models.NewAmount(price / 2),
		BarCode:     name,
	}
	require.NoError(t, f.articles.Insert(context.Background(), a))
	f.stock.Set(a.ID, qty)
	return a.ID
}

func (f *fixture) client(t *testing.T) primitive.ObjectID {
	t.Helper()
	c := &models.Client{
		FirstName:  "amel",
		LastName:   "bensaid",
		TypeClient: "particulier",
		Phone:      primitive.NewObjectID().Hex(),
		Email:      primitive.NewObjectID().Hex() + "@example.dz",
		Status:     true,
	}
	require.NoError(t, f.clients.Insert(context.Background(), c))
	return c.ID
}

func (f *fixture) qty(t *testing.T, article primitive.ObjectID) int64 {
	t.Helper()
	q, ok := f.stock.Quantity(article)
	require.True(t, ok)
	return q
}

// faultyStock fails the decrement of one article, as a concurrent sale
// taking the last units between check and write would. It can also fail
// the removal of a stock row.
type faultyStock struct {
	*repository.MemoryStock
	failDecrement primitive.ObjectID
	failDelete    bool
}

func (s *faultyStock) DeleteByArticle(ctx context.Context, article primitive.ObjectID) error {
	if s.failDelete {
		return apperr.Internal(errors.New("connection reset"), "delete stock")
	}
	return s.MemoryStock.DeleteByArticle(ctx, article)
}

func (s *faultyStock) Decrement(ctx context.Context, article primitive.ObjectID, qty int64) error {
	if article == s.failDecrement {
		return repository.ErrInsufficientStock
	}
	return s.MemoryStock.Decrement(ctx, article, qty)
}
