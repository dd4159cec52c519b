package poller

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/analytics"
	"github.com/stoik/replai/services/replai-service/internal/blocklist"
	"github.com/stoik/replai/services/replai-service/internal/composer"
	"github.com/stoik/replai/services/replai-service/internal/metrics"
	"github.com/stoik/replai/services/replai-service/internal/provider"
)

// Skip reasons recorded on inbound messages.
const (
	ReasonBlocked       = "blocked sender"
	ReasonQuotaExceeded = "monthly reply quota exceeded"
	ReasonAnswered      = "already answered"
)

// pipeline carries the per-tick state of one mailbox.
type pipeline struct {
	*Service
	account models.ConnectedAccount
	user    models.User
	mailbox provider.MailboxProvider
	used    int
	logger  *log.Logger
}

// process runs one message through fetch, record, guards, compose, send and
// bookkeeping. Failures are logged and swallowed. Before the send succeeds a
// failure leaves the message retryable on the next tick; after it, the
// message is always marked handled so it is never answered twice.
func (p *pipeline) process(ctx context.Context, ref models.MessageRef) bool {
	logger := p.logger.With("message_id", ref.ID)
	start := p.now()

	content, err := p.mailbox.GetMessage(ctx, ref.ID)
	if err != nil {
		metrics.PipelineErrors.WithLabelValues("fetch").Inc()
		logger.Error("Failed to fetch message", "error", err)
		return false
	}
	if content.ProviderMessageID == "" {
		content.ProviderMessageID = ref.ID
	}
	if content.ThreadID == "" {
		content.ThreadID = ref.ThreadID
	}

	inbound, err := p.recorder.RecordInbound(ctx, p.account, content)
	if err != nil {
		metrics.PipelineErrors.WithLabelValues("record").Inc()
		logger.Error("Failed to record inbound message", "error", err)
		return false
	}
	logger = logger.With("category", inbound.Category, "sentiment", inbound.Sentiment)

	if inbound.Processed {
		logger.Debug("Message answered in an earlier run")
		p.finish(ctx, logger, ref.ID)
		metrics.MessagesSkipped.WithLabelValues(ReasonAnswered).Inc()
		return false
	}

	if blocklist.IsBlocked(content.From.Email, p.user.BlockedSenders) {
		logger.Info("Sender is blocked, not replying", "from", content.From.Email)
		p.skip(ctx, logger, inbound, ReasonBlocked)
		p.dedupe.Add(ref.ID)
		return false
	}

	if limit := p.user.Plan.Limits().Emails; p.used >= limit {
		logger.Warn("Reply quota exhausted", "plan", p.user.Plan, "used", p.used, "limit", limit)
		p.skip(ctx, logger, inbound, ReasonQuotaExceeded)
		p.dedupe.Add(ref.ID)
		return false
	}

	reply, err := p.composer.Compose(ctx, composer.Input{
		Mailbox:      p.account.EmailAddress,
		DisplayName:  p.user.DisplayName(),
		CustomPrompt: p.user.CustomPrompt,
		Original:     content,
	})
	if err != nil {
		p.fail(ctx, logger, inbound, "compose", err)
		return false
	}

	sent, err := p.mailbox.Send(ctx, reply.Raw, content.ThreadID)
	if err != nil {
		p.fail(ctx, logger, inbound, "send", err)
		return false
	}
	p.used++

	if _, err := p.recorder.RecordSent(ctx, analytics.ReplyContext{
		Account:           p.account,
		Inbound:           inbound,
		To:                reply.To,
		Subject:           reply.Subject,
		Body:              reply.Text,
		ThreadID:          content.ThreadID,
		ProviderMessageID: sent.ID,
	}, p.now().Sub(start)); err != nil {
		metrics.PipelineErrors.WithLabelValues("record_sent").Inc()
		logger.Error("Reply sent but not recorded", "error", err)
	}

	if err := p.recorder.MarkProcessed(ctx, inbound.ID, "reply sent as "+sent.ID); err != nil {
		metrics.PipelineErrors.WithLabelValues("mark_processed").Inc()
		logger.Error("Failed to mark message processed", "error", err)
	}
	p.finish(ctx, logger, ref.ID)

	logger.Info("Replied", "to", reply.To, "reply_id", sent.ID)
	return true
}

// finish marks the message read and remembers it.
func (p *pipeline) finish(ctx context.Context, logger *log.Logger, id string) {
	if err := p.mailbox.MarkRead(ctx, id); err != nil {
		metrics.PipelineErrors.WithLabelValues("mark_read").Inc()
		logger.Error("Failed to mark message read", "error", err)
	}
	p.dedupe.Add(id)
}

func (p *pipeline) skip(ctx context.Context, logger *log.Logger, inbound models.InboundMessage, reason string) {
	if err := p.recorder.MarkSkipped(ctx, inbound.ID, reason); err != nil {
		logger.Error("Failed to record skipped message", "error", err)
	}
}

func (p *pipeline) fail(ctx context.Context, logger *log.Logger, inbound models.InboundMessage, stage string, cause error) {
	logger.Error("Reply pipeline failed", "stage", stage, "error", cause)
	if err := p.recorder.MarkFailed(ctx, inbound.ID, stage, cause); err != nil {
		logger.Error("Failed to record pipeline failure", "error", err)
	}
}
