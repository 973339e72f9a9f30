package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	chargedomain "github.com/smallbiznis/recurra/internal/charge/domain"
	"github.com/smallbiznis/recurra/pkg/db/pagination"
)

const HeaderIdempotencyKey = "Idempotency-Key"

func (s *Server) CreateCharge(c *gin.Context) {
	var req chargedomain.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)); key != "" {
		req.IdempotencyKey = key
	}

	charge, err := s.chargeSvc.Create(c.Request.Context(), tenantFrom(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charge})
}

func (s *Server) ListCharges(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status         string `form:"status"`
		SubscriptionID string `form:"subscription_id"`
		CustomerID     string `form:"customer_id"`
		DueFrom        string `form:"due_from"`
		DueTo          string `form:"due_to"`
		Search         string `form:"q"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	subscriptionID, err := parseOptionalSnowflakeID(query.SubscriptionID)
	if err != nil {
		AbortWithError(c, newValidationError("subscription_id", "invalid_subscription_id", "invalid subscription_id"))
		return
	}
	customerID, err := parseOptionalSnowflakeID(query.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}
	dueFrom, err := parseOptionalDate(query.DueFrom)
	if err != nil {
		AbortWithError(c, newValidationError("due_from", "invalid_due_from", "invalid due_from"))
		return
	}
	dueTo, err := parseOptionalDate(query.DueTo)
	if err != nil {
		AbortWithError(c, newValidationError("due_to", "invalid_due_to", "invalid due_to"))
		return
	}

	filter := chargedomain.ListChargeFilter{
		Status:  chargedomain.Status(strings.TrimSpace(query.Status)),
		DueFrom: dueFrom,
		DueTo:   dueTo,
		Search:  query.Search,
	}
	if subscriptionID != nil {
		filter.SubscriptionID = *subscriptionID
	}
	if customerID != nil {
		filter.CustomerID = *customerID
	}

	resp, err := s.chargeSvc.List(c.Request.Context(), tenantFrom(c), chargedomain.ListChargeRequest{
		ListChargeFilter: filter,
		Pagination:       query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetChargeByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	charge, err := s.chargeSvc.GetByID(c.Request.Context(), tenantFrom(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charge})
}

func (s *Server) ListChargePayments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	payments, err := s.chargeSvc.ListPayments(c.Request.Context(), tenantFrom(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

type markPaidRequest struct {
	Source string `json:"source"`
}

func (s *Server) MarkChargePaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req markPaidRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	charge, err := s.chargeSvc.MarkPaid(c.Request.Context(), tenantFrom(c), id, chargedomain.MarkPaidRequest{
		Source: req.Source,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charge})
}

func (s *Server) CancelCharge(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	charge, err := s.chargeSvc.Cancel(c.Request.Context(), tenantFrom(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charge})
}
