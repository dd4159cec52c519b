package api

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/blocklist"
)

const (
	maxPromptLength    = 4000
	maxBlocklistLength = 500
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type blocklistRequest struct {
	BlockedSenders []string `json:"blocked_senders"`
}

func (h *Handler) getPrompt(c *gin.Context) {
	user, err := h.Store.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": user.CustomPrompt})
}

// putPrompt saves the custom prompt; an empty prompt restores the default.
func (h *Handler) putPrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("invalid request body"))
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if utf8.RuneCountInString(prompt) > maxPromptLength {
		h.respondError(c, apperr.Validation("prompt must be at most %d characters", maxPromptLength))
		return
	}

	if err := h.Store.UpdateCustomPrompt(c.Request.Context(), currentUserID(c), prompt); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

func (h *Handler) getBlocklist(c *gin.Context) {
	user, err := h.Store.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	list := user.BlockedSenders
	if list == nil {
		list = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"blocked_senders": list})
}

func (h *Handler) putBlocklist(c *gin.Context) {
	var req blocklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("invalid request body"))
		return
	}
	list := blocklist.Normalize(req.BlockedSenders)
	if len(list) > maxBlocklistLength {
		h.respondError(c, apperr.Validation("block list is limited to %d entries", maxBlocklistLength))
		return
	}

	if err := h.Store.UpdateBlockedSenders(c.Request.Context(), currentUserID(c), list); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked_senders": list})
}
