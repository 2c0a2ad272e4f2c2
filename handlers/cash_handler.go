package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

const summaryDays = 30

// Summary counts the till per day between startDate and endDate, both
// inclusive and read in the shop's time zone. Without dates it covers the
// last 30 days.
func (h *SaleHandler) Summary(c *gin.Context) {
	now := time.Now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	from, to := today.AddDate(0, 0, 1-summaryDays), today

	var err error
	if s := c.Query("startDate"); s != "" {
		if from, err = time.ParseInLocation(time.DateOnly, s, h.loc); err != nil {
			respondError(c, apperr.Validation("startDate must be formatted as YYYY-MM-DD"))
			return
		}
	}
	if s := c.Query("endDate"); s != "" {
		if to, err = time.ParseInLocation(time.DateOnly, s, h.loc); err != nil {
			respondError(c, apperr.Validation("endDate must be formatted as YYYY-MM-DD"))
			return
		}
	}
	if to.Before(from) {
		respondError(c, apperr.Validation("endDate must not be before startDate"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	days, err := h.report.Daily(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		respondError(c, err)
		return
	}

	var total models.DailySales
	for _, d := range days {
		total.Merge(d)
	}
	c.JSON(http.StatusOK, gin.H{
		"startDate": from.Format(time.DateOnly),
		"endDate":   to.Format(time.DateOnly),
		"days":      days,
		"total": gin.H{
			"count":       total.Count,
			"total":       total.Total,
			"paid":        total.Paid,
			"notPaid":     total.NotPaid,
			"totalWeight": total.TotalWeight,
		},
	})
}
