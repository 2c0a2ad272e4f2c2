package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

// StockHandler serves the on-hand quantities. Rows are addressed by the
// article they count.
type StockHandler struct {
	stock    repository.StockStore
	view     repository.StockView
	articles repository.Store[models.Article]
}

func NewStockHandler(stock repository.StockStore, view repository.StockView, articles repository.Store[models.Article]) *StockHandler {
	return &StockHandler{stock: stock, view: view, articles: articles}
}

type stockEntry struct {
	models.Stock
	Item *models.Article `json:"articleDetails,omitempty"`
}

// List returns every stock row with its article. lowStock=n keeps the rows
// at or below n units.
func (h *StockHandler) List(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	threshold, err := repository.Number(query(c), "lowStock", "stock")
	if err != nil {
		respondError(c, err)
		return
	}

	rows, err := h.view.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i := range rows {
		ids[i] = rows[i].Article
	}
	articles, err := h.articles.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		respondError(c, err)
		return
	}
	byID := make(map[primitive.ObjectID]*models.Article, len(articles))
	for i := range articles {
		byID[articles[i].ID] = &articles[i]
	}

	out := make([]stockEntry, 0, len(rows))
	for _, r := range rows {
		if threshold != nil && !atOrBelow(r.Stock, threshold["stock"]) {
			continue
		}
		e := stockEntry{Stock: r, Item: byID[r.Article]}
		if e.Item != nil {
			e.Item.CountArticle = r.Stock
		}
		out = append(out, e)
	}
	c.JSON(http.StatusOK, gin.H{"stock": out})
}

func atOrBelow(qty int64, limit any) bool {
	switch v := limit.(type) {
	case int64:
		return qty <= v
	case float64:
		return float64(qty) <= v
	}
	return true
}

func (h *StockHandler) Get(c *gin.Context) {
	article, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.stock.FindByArticle(ctx, article)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock": st})
}

// Set overwrites the count after a physical inventory.
func (h *StockHandler) Set(c *gin.Context) {
	article, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Stock *int64 `json:"stock" binding:"required,min=0"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.stock.SetQuantity(ctx, article, *req.Stock)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock updated successfully", "stock": st})
}
