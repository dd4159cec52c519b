package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type mailboxRequest struct {
	Email string `json:"email" binding:"required"`
}

type pauseRequest struct {
	Email  string `json:"email" binding:"required"`
	Paused *bool  `json:"paused" binding:"required"`
}

func (h *Handler) googleAuthURL(c *gin.Context) {
	state, err := h.Auth.IssueState(currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authUrl": h.Connector.AuthCodeURL(state)})
}

func (h *Handler) outlookAuthURL(c *gin.Context) {
	h.respondError(c, fmt.Errorf("%w: outlook accounts are not supported yet", apperr.ErrNotImplemented))
}

// googleCallback finishes the OAuth round trip. The browser lands here, so
// every outcome is a redirect back to the frontend.
func (h *Handler) googleCallback(c *gin.Context) {
	ctx := c.Request.Context()

	if denied := c.Query("error"); denied != "" {
		h.redirectToFrontend(c, "error", denied)
		return
	}
	userID, err := h.Auth.ParseState(c.Query("state"))
	if err != nil {
		h.redirectToFrontend(c, "error", "invalid_state")
		return
	}
	code := c.Query("code")
	if code == "" {
		h.redirectToFrontend(c, "error", "missing_code")
		return
	}

	address, token, err := h.Connector.Exchange(ctx, code)
	if err != nil {
		h.Logger.Error("OAuth exchange failed", "user_id", userID, "error", err)
		h.redirectToFrontend(c, "error", "exchange_failed")
		return
	}

	if err := h.checkAccountLimit(ctx, userID, address); err != nil {
		h.Logger.Warn("Mailbox not connected", "user_id", userID, "mailbox", address, "error", err)
		h.redirectToFrontend(c, "error", "account_limit")
		return
	}

	account := models.ConnectedAccount{
		UserID:       userID,
		Provider:     models.ProviderGoogle,
		EmailAddress: address,
		Token:        token,
	}
	if err := h.Store.UpsertAccount(ctx, &account); err != nil {
		h.Logger.Error("Failed to save connected account", "user_id", userID, "error", err)
		h.redirectToFrontend(c, "error", "save_failed")
		return
	}

	h.Poller.Connect(account)
	h.Logger.Info("Mailbox connected", "user_id", userID, "mailbox", address)
	h.redirectToFrontend(c, "connected", address)
}

// checkAccountLimit allows reconnecting an existing mailbox at any time.
func (h *Handler) checkAccountLimit(ctx context.Context, userID uuid.UUID, address string) error {
	if _, err := h.Store.FindAccount(ctx, userID, address); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrNotConnected) {
		return err
	}

	user, err := h.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	count, err := h.Store.CountAccounts(ctx, userID)
	if err != nil {
		return err
	}
	if count >= user.Plan.Limits().Accounts {
		return fmt.Errorf("%w: plan %s allows %d mailboxes", apperr.ErrQuotaExceeded, user.Plan, user.Plan.Limits().Accounts)
	}
	return nil
}

func (h *Handler) redirectToFrontend(c *gin.Context, key, value string) {
	q := url.Values{}
	q.Set(key, value)
	c.Redirect(http.StatusFound, strings.TrimRight(h.Config.Server.FrontendURL, "/")+"/dashboard?"+q.Encode())
}

func (h *Handler) listAccounts(c *gin.Context) {
	accounts, err := h.Store.ListAccounts(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) disconnect(c *gin.Context) {
	var req mailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("email is required"))
		return
	}
	userID := currentUserID(c)

	if err := h.Store.DeleteAccount(c.Request.Context(), userID, req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	stopped := h.Poller.Disconnect(userID, req.Email)

	h.Logger.Info("Mailbox disconnected", "user_id", userID, "mailbox", req.Email, "loops_stopped", stopped)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Disconnected %s", req.Email)})
}

func (h *Handler) pause(c *gin.Context) {
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("email and paused are required"))
		return
	}

	if err := h.Store.SetSyncPaused(c.Request.Context(), currentUserID(c), req.Email, *req.Paused); err != nil {
		h.respondError(c, err)
		return
	}

	state := "resumed"
	if *req.Paused {
		state = "paused"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Sync %s for %s", state, req.Email),
		"paused":  *req.Paused,
	})
}

func (h *Handler) sync(c *gin.Context) {
	var req mailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("email is required"))
		return
	}

	replied, err := h.Poller.TriggerSync(c.Request.Context(), currentUserID(c), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Sync completed for %s", req.Email),
		"processed": replied,
	})
}

func (h *Handler) listInbound(c *gin.Context) {
	limit, err := listLimit(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	messages, err := h.Store.ListInbound(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) listSent(c *gin.Context) {
	limit, err := listLimit(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	replies, err := h.Store.ListSent(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

func listLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Validation("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}
