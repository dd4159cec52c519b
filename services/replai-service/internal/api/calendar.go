package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

func (h *Handler) listEvents(c *gin.Context) {
	timeMin, err := queryTime(c, "timeMin")
	if err != nil {
		h.respondError(c, err)
		return
	}
	timeMax, err := queryTime(c, "timeMax")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if timeMin.IsZero() {
		timeMin = h.now()
	}

	events, err := h.Calendar.List(c.Request.Context(), currentUserID(c), timeMin, timeMax)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) createEvent(c *gin.Context) {
	var ev models.CalendarEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.respondError(c, apperr.Validation("invalid event: %v", err))
		return
	}
	created, err := h.Calendar.Create(c.Request.Context(), currentUserID(c), ev)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": created})
}

func (h *Handler) updateEvent(c *gin.Context) {
	var ev models.CalendarEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.respondError(c, apperr.Validation("invalid event: %v", err))
		return
	}
	updated, err := h.Calendar.Update(c.Request.Context(), currentUserID(c), c.Param("id"), ev)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": updated})
}

func (h *Handler) deleteEvent(c *gin.Context) {
	if err := h.Calendar.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted"})
}

func queryTime(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be an RFC3339 timestamp", key)
	}
	return t, nil
}
