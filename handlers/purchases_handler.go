package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/services"
)

// PurchaseHandler lists purchases and records restocks of existing articles.
type PurchaseHandler struct {
	*PurchaseResource
	articles *services.ArticleService
}

func NewPurchaseHandler(purchases *PurchaseResource, articles *services.ArticleService) *PurchaseHandler {
	return &PurchaseHandler{PurchaseResource: purchases, articles: articles}
}

func (h *PurchaseHandler) Restock(c *gin.Context) {
	var req struct {
		Article      primitive.ObjectID `json:"article" binding:"required"`
		CountArticle int64              `json:"countArticle" binding:"required,min=1"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	purchase, err := h.articles.Restock(ctx, req.Article, req.CountArticle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Purchase created successfully", "purchase": purchase})
}

// SupplierHandler adds the purchase history view to the supplier resource.
type SupplierHandler struct {
	*SupplierResource
	svc *services.SupplierService
}

func NewSupplierHandler(suppliers *SupplierResource, svc *services.SupplierService) *SupplierHandler {
	return &SupplierHandler{SupplierResource: suppliers, svc: svc}
}

// Get returns the supplier with its purchases and a recomputed totalPayment.
func (h *SupplierHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	detail, err := h.svc.Detail(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
