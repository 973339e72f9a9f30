package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/recurra/internal/webhook"
)

const maxWebhookBody = 1 << 20

// HandlePaymentWebhook answers 200 for everything the sender should not
// retry, including unknown charges and payloads the adapter does not model.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(payload) > maxWebhookBody {
		AbortWithError(c, newValidationError("body", "payload_too_large", "webhook body exceeds 1 MiB"))
		return
	}

	res, err := s.webhookSvc.IngestWebhook(c.Request.Context(), webhook.Delivery{
		Provider: strings.TrimSpace(c.Param("provider")),
		TenantID: c.Query("tenant"),
		Headers:  c.Request.Header,
		Payload:  payload,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": res.Outcome, "reason": res.Reason})
}
