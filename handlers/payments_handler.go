package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bijouterie-backoffice/models"
)

type paymentRequest struct {
	Method      models.PaymentMethod `json:"method" binding:"required"`
	Amount      models.Amount        `json:"amount" binding:"required,gt=0"`
	Description string               `json:"description"`
	Date        time.Time            `json:"date"`
}

func (r paymentRequest) payment() models.Payment {
	return models.Payment{
		Method:      r.Method,
		Amount:      r.Amount,
		Description: r.Description,
		Date:        r.Date,
	}
}

// AddPayment records a payment against the sale's balance. Paying more than
// notPaid is rejected.
func (h *SaleHandler) AddPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.svc.AddPayment(ctx, id, req.payment())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment added successfully", "sale": sale})
}

func (h *SaleHandler) EditPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := paramID(c, "paymentId")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.svc.EditPayment(ctx, id, paymentID, req.payment())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment updated successfully", "sale": sale})
}

func (h *SaleHandler) DeletePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := paramID(c, "paymentId")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sale, err := h.svc.DeletePayment(ctx, id, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted successfully", "sale": sale})
}
