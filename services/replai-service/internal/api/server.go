// Package api exposes the HTTP surface of the service with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/auth"
	"github.com/stoik/replai/services/replai-service/internal/config"
)

// Store is the persistence used by the handlers.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateCustomPrompt(ctx context.Context, userID uuid.UUID, prompt string) error
	UpdateBlockedSenders(ctx context.Context, userID uuid.UUID, list []string) error

	UpsertAccount(ctx context.Context, a *models.ConnectedAccount) error
	FindAccount(ctx context.Context, userID uuid.UUID, address string) (models.ConnectedAccount, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.ConnectedAccount, error)
	CountAccounts(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID, address string) error
	SetSyncPaused(ctx context.Context, userID uuid.UUID, address string, paused bool) error

	ListInbound(ctx context.Context, userID uuid.UUID, limit int) ([]models.InboundMessage, error)
	ListSent(ctx context.Context, userID uuid.UUID, limit int) ([]models.SentReply, error)
}

// Poller controls the mailbox loops.
type Poller interface {
	Connect(account models.ConnectedAccount)
	Disconnect(userID uuid.UUID, address string) int
	TriggerSync(ctx context.Context, userID uuid.UUID, address string) (int, error)
	Active() []string
}

// Connector runs the Google OAuth connect flow.
type Connector interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, models.Token, error)
}

// Analytics serves the dashboard summary.
type Analytics interface {
	Summary(ctx context.Context, userID uuid.UUID) (models.AnalyticsSummary, error)
}

// Calendar is the calendar CRUD facade.
type Calendar interface {
	List(ctx context.Context, userID uuid.UUID, timeMin, timeMax time.Time) ([]models.CalendarEvent, error)
	Create(ctx context.Context, userID uuid.UUID, ev models.CalendarEvent) (models.CalendarEvent, error)
	Update(ctx context.Context, userID uuid.UUID, id string, ev models.CalendarEvent) (models.CalendarEvent, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

// Billing starts checkouts and applies webhooks.
type Billing interface {
	Checkout(ctx context.Context, user models.User, plan models.Plan) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Deps are the collaborators of the handlers.
type Deps struct {
	Store     Store
	Poller    Poller
	Connector Connector
	Analytics Analytics
	Calendar  Calendar
	Billing   Billing
	Auth      *auth.Manager
	Config    *config.Config
	Logger    *log.Logger
}

// Handler holds the HTTP handlers.
type Handler struct {
	Deps
	now func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	h := &Handler{Deps: d, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := newRateLimiter(d.Config.RateLimit.RPS, d.Config.RateLimit.Burst)
	api := r.Group("/api", limiter.middleware())

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	// Webhooks and OAuth redirects authenticate by signature and state.
	api.POST("/payments/webhook", h.stripeWebhook)
	api.GET("/emails/auth/google/callback", h.googleCallback)

	protected := api.Group("", auth.Middleware(d.Auth))

	user := protected.Group("/user")
	{
		user.GET("/me", h.me)
		user.GET("/usage", h.usage)
	}

	emails := protected.Group("/emails")
	{
		emails.GET("/auth/google", h.googleAuthURL)
		emails.GET("/auth/outlook", h.outlookAuthURL)
		emails.GET("/accounts", h.listAccounts)
		emails.POST("/disconnect", h.disconnect)
		emails.POST("/pause", h.pause)
		emails.POST("/sync", h.sync)
		emails.GET("/inbound", h.listInbound)
		emails.GET("/sent", h.listSent)
	}

	settings := protected.Group("/settings")
	{
		settings.GET("/prompt", h.getPrompt)
		settings.PUT("/prompt", h.putPrompt)
		settings.GET("/blocklist", h.getBlocklist)
		settings.PUT("/blocklist", h.putBlocklist)
	}

	cal := protected.Group("/calendar")
	{
		cal.GET("/events", h.listEvents)
		cal.POST("/events", h.createEvent)
		cal.PUT("/events/:id", h.updateEvent)
		cal.DELETE("/events/:id", h.deleteEvent)
	}

	protected.POST("/payments/checkout", h.checkout)
	protected.GET("/analytics/summary", h.analyticsSummary)

	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"active_mailboxes": len(h.Poller.Active()),
	})
}

// respondError writes err as {"error": message} with its taxonomy status.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// currentUserID is only called behind auth.Middleware.
func currentUserID(c *gin.Context) uuid.UUID {
	id, _ := auth.UserID(c)
	return id
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
