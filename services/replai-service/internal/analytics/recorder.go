// Package analytics records inbound messages and sent replies, keeps usage
// counters current and aggregates the dashboard summary.
package analytics

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/classify"
	"github.com/stoik/replai/services/replai-service/internal/metrics"
)

// SummaryDays is the window of the daily reply series.
const SummaryDays = 30

// Store is the persistence the recorder needs.
type Store interface {
	SaveInbound(ctx context.Context, m *models.InboundMessage) error
	UpdateInboundStatus(ctx context.Context, id uuid.UUID, status string, entry models.ProcessingEntry) error
	SaveSent(ctx context.Context, r *models.SentReply) error
	IncrementEmailsUsed(ctx context.Context, userID uuid.UUID) error
	Summary(ctx context.Context, userID uuid.UUID, days int) (models.AnalyticsSummary, error)
}

// ReplyContext describes a reply that was just delivered.
type ReplyContext struct {
	Account           models.ConnectedAccount
	Inbound           models.InboundMessage
	To                string
	Subject           string
	Body              string
	ThreadID          string
	ProviderMessageID string
}

// Recorder writes analytics records.
type Recorder struct {
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// New creates a Recorder.
func New(store Store, logger *log.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// RecordInbound classifies content and persists it the first time it is seen.
// The returned record reflects what is on file, so a message processed
// before a restart comes back with Processed set.
func (r *Recorder) RecordInbound(ctx context.Context, account models.ConnectedAccount, content models.MessageContent) (models.InboundMessage, error) {
	c := classify.Classify(content)

	to := make([]string, 0, len(content.To))
	for _, a := range content.To {
		to = append(to, a.Email)
	}
	receivedAt := content.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = r.now()
	}

	m := models.InboundMessage{
		UserID:            account.UserID,
		AccountID:         account.ID,
		ProviderMessageID: content.ProviderMessageID,
		ThreadID:          content.ThreadID,
		Subject:           content.Subject,
		Snippet:           content.Snippet,
		Body:              models.MessageBody{Text: content.PlainBody, HTML: content.HTMLBody},
		From:              content.From,
		To:                to,
		ReceivedAt:        receivedAt,
		Category:          c.Category,
		Sentiment:         c.Sentiment,
		Urgent:            c.Urgent,
		Bulk:              c.Bulk,
		ProcessingStatus:  models.StatusPending,
		ProcessingLog: []models.ProcessingEntry{
			{At: r.now(), Stage: "received", Message: "message fetched from " + string(account.Provider)},
		},
	}
	if err := r.store.SaveInbound(ctx, &m); err != nil {
		return models.InboundMessage{}, err
	}

	metrics.EmailsReceived.WithLabelValues(string(m.Category)).Inc()
	return m, nil
}

// RecordSent persists the reply and counts it against the user's monthly
// usage. A failed usage update is logged; the reply record stands.
func (r *Recorder) RecordSent(ctx context.Context, rc ReplyContext, responseTime time.Duration) (models.SentReply, error) {
	sent := models.SentReply{
		UserID:            rc.Account.UserID,
		AccountID:         rc.Account.ID,
		From:              rc.Account.EmailAddress,
		To:                []string{rc.To},
		Subject:           rc.Subject,
		Body:              rc.Body,
		ThreadID:          rc.ThreadID,
		ProviderMessageID: rc.ProviderMessageID,
		ReplyToMessageID:  rc.Inbound.ProviderMessageID,
		ResponseTimeMs:    responseTime.Milliseconds(),
		Category:          rc.Inbound.Category,
		Sentiment:         rc.Inbound.Sentiment,
		AutoGenerated:     true,
		IsReply:           true,
		SentAt:            r.now(),
	}
	if err := r.store.SaveSent(ctx, &sent); err != nil {
		return models.SentReply{}, err
	}

	if err := r.store.IncrementEmailsUsed(ctx, sent.UserID); err != nil {
		r.logger.Warn("Failed to update usage", "user_id", sent.UserID, "error", err)
	}

	metrics.RepliesSent.WithLabelValues(string(rc.Account.Provider)).Inc()
	metrics.ResponseTime.Observe(responseTime.Seconds())
	return sent, nil
}

// MarkProcessed flags the inbound record as answered.
func (r *Recorder) MarkProcessed(ctx context.Context, inboundID uuid.UUID, message string) error {
	return r.mark(ctx, inboundID, models.StatusProcessed, "replied", message)
}

// MarkSkipped records why a message was not answered.
func (r *Recorder) MarkSkipped(ctx context.Context, inboundID uuid.UUID, reason string) error {
	metrics.MessagesSkipped.WithLabelValues(reason).Inc()
	return r.mark(ctx, inboundID, models.StatusSkipped, "skipped", reason)
}

// MarkFailed records the stage and error of a failed attempt.
func (r *Recorder) MarkFailed(ctx context.Context, inboundID uuid.UUID, stage string, cause error) error {
	metrics.PipelineErrors.WithLabelValues(stage).Inc()
	return r.mark(ctx, inboundID, models.StatusFailed, stage, cause.Error())
}

func (r *Recorder) mark(ctx context.Context, id uuid.UUID, status, stage, message string) error {
	return r.store.UpdateInboundStatus(ctx, id, status, models.ProcessingEntry{
		At:      r.now(),
		Stage:   stage,
		Message: message,
	})
}

// Summary aggregates a user's records for the dashboard.
func (r *Recorder) Summary(ctx context.Context, userID uuid.UUID) (models.AnalyticsSummary, error) {
	return r.store.Summary(ctx, userID, SummaryDays)
}
