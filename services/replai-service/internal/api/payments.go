package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

// maxWebhookBody mirrors Stripe's own payload ceiling.
const maxWebhookBody = 65536

type checkoutRequest struct {
	Plan string `json:"plan" binding:"required"`
}

func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("plan is required"))
		return
	}

	user, err := h.Store.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	url, err := h.Billing.Checkout(c.Request.Context(), user, models.Plan(req.Plan))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		h.respondError(c, apperr.Validation("unreadable body"))
		return
	}
	if len(payload) > maxWebhookBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "webhook payload too large"})
		return
	}
	if err := h.Billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
