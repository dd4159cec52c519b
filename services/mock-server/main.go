package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gm "google.golang.org/api/gmail/v1"

	"github.com/stoik/replai/services/mock-server/internal/mock"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	address := os.Getenv("MOCK_MAILBOX")
	if address == "" {
		address = "me@example.com"
	}

	mailbox := mock.NewMailbox(address)
	mailbox.Generate(3, time.Now())
	go mailbox.GeneratePeriodically(30*time.Second, nil)

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting Replai mock API server on %s (mailbox %s)", addr, address)
	log.Fatal(http.ListenAndServe(addr, newRouter(mailbox)))
}

func newRouter(mailbox *mock.Mailbox) *gin.Engine {
	h := &handlers{mailbox: mailbox}
	r := gin.Default()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gmail endpoints used by the poller
	gmail := r.Group("/gmail/v1/users/:user")
	{
		gmail.GET("/profile", h.profile)
		gmail.GET("/messages", h.listMessages)
		gmail.GET("/messages/:id", h.getMessage)
		gmail.POST("/messages/send", h.sendMessage)
		gmail.POST("/messages/:id/modify", h.modifyMessage)
	}

	// Chat completions used by the composer
	r.POST("/v1/chat/completions", h.chatCompletion)

	// Admin endpoints for testing
	admin := r.Group("/admin")
	{
		admin.POST("/emails", h.deliver)
		admin.GET("/sent", h.sent)
	}
	return r
}

type handlers struct {
	mailbox *mock.Mailbox
}

func (h *handlers) profile(c *gin.Context) {
	c.JSON(http.StatusOK, gm.Profile{EmailAddress: h.mailbox.Address()})
}

func (h *handlers) listMessages(c *gin.Context) {
	max := 100
	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid maxResults"})
			return
		}
		max = n
	}

	refs := h.mailbox.ListUnread(max)
	c.JSON(http.StatusOK, gm.ListMessagesResponse{Messages: refs, ResultSizeEstimate: int64(len(refs))})
}

func (h *handlers) getMessage(c *gin.Context) {
	msg, ok := h.mailbox.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req gm.Message
	if err := c.ShouldBindJSON(&req); err != nil || req.Raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "raw is required"})
		return
	}

	id, err := h.mailbox.Send(req.Raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gm.Message{Id: id, ThreadId: req.ThreadId, LabelIds: []string{"SENT"}})
}

func (h *handlers) modifyMessage(c *gin.Context) {
	var req gm.ModifyMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if !h.mailbox.Modify(id, req.AddLabelIds, req.RemoveLabelIds) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	msg, _ := h.mailbox.Get(id)
	c.JSON(http.StatusOK, msg)
}

func (h *handlers) chatCompletion(c *gin.Context) {
	var req mock.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	resp, err := mock.Complete(req, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) deliver(c *gin.Context) {
	var req struct {
		From    string `json:"from"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
		Count   int    `json:"count"`
	}

	// Try JSON body first
	if err := c.ShouldBindJSON(&req); err != nil {
		// Fall back to query parameter
		if num, err := strconv.Atoi(c.DefaultQuery("count", "1")); err == nil {
			req.Count = num
		}
	}

	if req.From != "" {
		id := h.mailbox.Deliver(req.From, req.Subject, req.Body, time.Now())
		c.JSON(http.StatusOK, gin.H{"ids": []string{id}})
		return
	}

	// Default to 1 if not specified or invalid
	if req.Count < 1 {
		req.Count = 1
	}
	ids := h.mailbox.Generate(req.Count, time.Now())
	c.JSON(http.StatusOK, gin.H{
		"ids":     ids,
		"message": fmt.Sprintf("Delivered %d message(s)", len(ids)),
	})
}

func (h *handlers) sent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sent": h.mailbox.Sent()})
}
