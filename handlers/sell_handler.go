package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
	"bijouterie-backoffice/services"
)

type SaleHandler struct {
	svc     *services.SaleService
	sales   repository.Store[models.Sale]
	clients repository.Store[models.Client]
	report  repository.SalesReport
	loc     *time.Location
}

func NewSaleHandler(
	svc *services.SaleService,
	sales repository.Store[models.Sale],
	clients repository.Store[models.Client],
	report repository.SalesReport,
	loc *time.Location,
) *SaleHandler {
	return &SaleHandler{svc: svc, sales: sales, clients: clients, report: report, loc: loc}
}

type saleLineRequest struct {
	Article  primitive.ObjectID `json:"article"`
	Quantity int64              `json:"quantity"`
}

type saleRequest struct {
	Client      primitive.ObjectID `json:"client"`
	Articles    []saleLineRequest  `json:"articles"`
	Total       models.Amount      `json:"total"`
	Description string             `json:"description"`
	Date        time.Time          `json:"date"`
}

func (r saleRequest) lines() []services.LineInput {
	out := make([]services.LineInput, len(r.Articles))
	for i, l := range r.Articles {
		out[i] = services.LineInput{Article: l.Article, Quantity: l.Quantity}
	}
	return out
}

func (r saleRequest) input() services.SaleInput {
	return services.SaleInput{
		Client:      r.Client,
		Lines:       r.lines(),
		Total:       r.Total,
		Description: r.Description,
		Date:        r.Date,
	}
}

// List accepts client, status, ref, date or startDate/endDate on the sale
// date, a client name search and unpaid=true for sales with a balance due.
func (h *SaleHandler) List(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	filter, err := h.filter(ctx, query(c))
	if err != nil {
		respondError(c, err)
		return
	}
	sales, err := h.sales.Find(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *SaleHandler) filter(ctx context.Context, q repository.Query) (bson.M, error) {
	var b repository.Builder
	b.Try(repository.ObjectID(q, "client", "client"))
	if s := q.Get("status"); s != "" {
		if !models.SaleStatus(s).Valid() {
			return nil, apperr.Validation("Unknown sale status %q", s)
		}
		b.Add(bson.M{"status": s})
	}
	b.Try(repository.Number(q, "ref", "ref"))
	b.Try(repository.DateRange(q, "date"))

	if text := searchText(q); text != "" {
		matched, err := h.clients.Find(ctx, repository.NameSearch(text, "firstName", "lastName", "phone"))
		if err != nil {
			return nil, err
		}
		ids := make([]primitive.ObjectID, len(matched))
		for i := range matched {
			ids[i] = matched[i].ID
		}
		b.Add(bson.M{"client": bson.M{"$in": ids}})
	}

	unpaid, err := repository.Bool(q, "unpaid", "unpaid")
	if err != nil {
		return nil, err
	}
	if unpaid != nil {
		if unpaid["unpaid"] == true {
			b.Add(bson.M{"notPaid": bson.M{"$gt": 0}})
		} else {
			b.Add(bson.M{"notPaid": bson.M{"$lte": 0}})
		}
	}
	return b.Build()
}

func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.sales.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sale": sale})
}

func (h *SaleHandler) Create(c *gin.Context) {
	var req saleRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Client.IsZero() {
		respondError(c, apperr.Validation("client is required"))
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.svc.Create(ctx, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Sale created successfully", "sale": sale})
}

// Update replaces the lines of a sale; an omitted client keeps the current one.
func (h *SaleHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req saleRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.svc.Update(ctx, id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sale updated successfully", "sale": sale})
}

func (h *SaleHandler) SetStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.SaleStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.svc.SetStatus(ctx, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sale status updated successfully", "sale": sale})
}

func (h *SaleHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.svc.Delete(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sale deleted successfully"})
}

// VerifyQuantities answers whether the requested articles can be sold now.
// A shortage is reported in the body, not as an error status.
func (h *SaleHandler) VerifyQuantities(c *gin.Context) {
	var req saleRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	lines, ok, err := h.svc.VerifyQuantities(ctx, req.lines())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok, "articles": lines})
}
