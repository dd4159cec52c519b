package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
	User      models.User `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("email and password are required"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		h.respondError(c, apperr.Validation("invalid email address"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user := models.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Plan:         models.PlanFree,
	}
	if err := h.Store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			err = fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
		h.respondError(c, err)
		return
	}

	h.Logger.Info("User registered", "user_id", user.ID)
	h.respondSession(c, http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("email and password are required"))
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		h.respondError(c, err)
		return
	}
	if err != nil || user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	h.respondSession(c, http.StatusOK, user)
}

func (h *Handler) respondSession(c *gin.Context, status int, user models.User) {
	token, expiresAt, err := h.Auth.Issue(user.ID, user.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, sessionResponse{Token: token, ExpiresAt: expiresAt.Unix(), User: user})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Store.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) usage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	user, err := h.Store.GetUser(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	accounts, err := h.Store.CountAccounts(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	limits := user.Plan.Limits()
	c.JSON(http.StatusOK, models.Usage{
		Emails:   models.NewUsageMeter(user.EmailsUsedAt(h.now()), limits.Emails),
		Accounts: models.NewUsageMeter(accounts, limits.Accounts),
	})
}

func (h *Handler) analyticsSummary(c *gin.Context) {
	summary, err := h.Analytics.Summary(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
