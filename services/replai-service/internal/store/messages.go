package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

const inboundColumns = `id, user_id, account_id, provider_message_id, thread_id, subject, snippet,
	body_text, body_html, from_name, from_email, to_addrs, received_at, category, sentiment,
	is_urgent, is_bulk, processed, processing_status, processing_log, created_at`

const sentColumns = `id, user_id, account_id, from_addr, to_addrs, subject, body, thread_id,
	provider_message_id, reply_to_message_id, response_time_ms, category, sentiment,
	auto_generated, is_reply, sent_at`

// SaveInbound records m the first time it is seen. A message already on file
// keeps its original row; m is refreshed with the stored id and state.
func (s *Store) SaveInbound(ctx context.Context, m *models.InboundMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.ProcessingStatus == "" {
		m.ProcessingStatus = models.StatusPending
	}
	if m.To == nil {
		m.To = []string{}
	}
	logJSON, err := json.Marshal(orEmpty(m.ProcessingLog))
	if err != nil {
		return apperr.Persistence("encode processing log", err)
	}

	query := `
		INSERT INTO inbound_messages (id, user_id, account_id, provider_message_id, thread_id, subject, snippet,
			body_text, body_html, from_name, from_email, to_addrs, received_at, category, sentiment,
			is_urgent, is_bulk, processed, processing_status, processing_log)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (account_id, provider_message_id)
		DO UPDATE SET account_id = EXCLUDED.account_id
		RETURNING id, processed, processing_status, created_at
	`
	err = s.pool.QueryRow(ctx, query,
		m.ID, m.UserID, m.AccountID, m.ProviderMessageID, m.ThreadID, m.Subject, m.Snippet,
		m.Body.Text, m.Body.HTML, m.From.Name, m.From.Email, m.To, m.ReceivedAt, m.Category, m.Sentiment,
		m.Urgent, m.Bulk, m.Processed, m.ProcessingStatus, string(logJSON),
	).Scan(&m.ID, &m.Processed, &m.ProcessingStatus, &m.CreatedAt)
	return translate("save inbound message", err, apperr.ErrNotFound)
}

// UpdateInboundStatus sets the processing status, appends entry to the log and
// flips processed when status is models.StatusProcessed.
func (s *Store) UpdateInboundStatus(ctx context.Context, id uuid.UUID, status string, entry models.ProcessingEntry) error {
	entryJSON, err := json.Marshal([]models.ProcessingEntry{entry})
	if err != nil {
		return apperr.Persistence("encode processing entry", err)
	}
	return s.execOne(ctx, "update inbound status", `
		UPDATE inbound_messages
		SET processing_status = $1,
			processed = processed OR $1 = 'processed',
			processing_log = processing_log || $2::jsonb
		WHERE id = $3`,
		status, string(entryJSON), id)
}

// ListInbound returns the most recent inbound records of a user.
func (s *Store) ListInbound(ctx context.Context, userID uuid.UUID, limit int) ([]models.InboundMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+inboundColumns+` FROM inbound_messages WHERE user_id = $1 ORDER BY received_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, translate("list inbound", err, apperr.ErrNotFound)
	}
	defer rows.Close()

	var out []models.InboundMessage
	for rows.Next() {
		var (
			m       models.InboundMessage
			logJSON []byte
		)
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.AccountID, &m.ProviderMessageID, &m.ThreadID, &m.Subject, &m.Snippet,
			&m.Body.Text, &m.Body.HTML, &m.From.Name, &m.From.Email, &m.To, &m.ReceivedAt, &m.Category, &m.Sentiment,
			&m.Urgent, &m.Bulk, &m.Processed, &m.ProcessingStatus, &logJSON, &m.CreatedAt,
		); err != nil {
			return nil, translate("scan inbound", err, apperr.ErrNotFound)
		}
		if err := json.Unmarshal(logJSON, &m.ProcessingLog); err != nil {
			return nil, apperr.Persistence("decode processing log", err)
		}
		out = append(out, m)
	}
	return out, translate("list inbound", rows.Err(), apperr.ErrNotFound)
}

// SaveSent persists a sent reply.
func (s *Store) SaveSent(ctx context.Context, r *models.SentReply) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SentAt.IsZero() {
		r.SentAt = time.Now().UTC()
	}
	if r.To == nil {
		r.To = []string{}
	}

	query := `
		INSERT INTO sent_replies (` + sentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.pool.Exec(ctx, query,
		r.ID, r.UserID, r.AccountID, r.From, r.To, r.Subject, r.Body, r.ThreadID,
		r.ProviderMessageID, r.ReplyToMessageID, r.ResponseTimeMs, r.Category, r.Sentiment,
		r.AutoGenerated, r.IsReply, r.SentAt,
	)
	return translate("save sent reply", err, apperr.ErrNotFound)
}

// ListSent returns the most recent replies of a user.
func (s *Store) ListSent(ctx context.Context, userID uuid.UUID, limit int) ([]models.SentReply, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sentColumns+` FROM sent_replies WHERE user_id = $1 ORDER BY sent_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, translate("list sent", err, apperr.ErrNotFound)
	}
	defer rows.Close()

	var out []models.SentReply
	for rows.Next() {
		var r models.SentReply
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.AccountID, &r.From, &r.To, &r.Subject, &r.Body, &r.ThreadID,
			&r.ProviderMessageID, &r.ReplyToMessageID, &r.ResponseTimeMs, &r.Category, &r.Sentiment,
			&r.AutoGenerated, &r.IsReply, &r.SentAt,
		); err != nil {
			return nil, translate("scan sent", err, apperr.ErrNotFound)
		}
		out = append(out, r)
	}
	return out, translate("list sent", rows.Err(), apperr.ErrNotFound)
}

// Summary aggregates a user's records over the last `days` days.
func (s *Store) Summary(ctx context.Context, userID uuid.UUID, days int) (models.AnalyticsSummary, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	summary := models.AnalyticsSummary{
		ByCategory:  map[models.Category]int{},
		BySentiment: map[models.Sentiment]int{},
	}

	rows, err := s.pool.Query(ctx, `
		SELECT category, sentiment, COUNT(*)
		FROM inbound_messages
		WHERE user_id = $1 AND received_at >= $2
		GROUP BY category, sentiment`, userID, since)
	if err != nil {
		return summary, translate("summary inbound", err, apperr.ErrNotFound)
	}
	err = forEachRow(rows, func(r pgx.Rows) error {
		var (
			c  models.Category
			st models.Sentiment
			n  int
		)
		if err := r.Scan(&c, &st, &n); err != nil {
			return err
		}
		summary.ByCategory[c] += n
		summary.BySentiment[st] += n
		summary.Received += n
		return nil
	})
	if err != nil {
		return summary, translate("summary inbound", err, apperr.ErrNotFound)
	}

	var avg *float64
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), AVG(response_time_ms)::float8
		FROM sent_replies
		WHERE user_id = $1 AND sent_at >= $2`, userID, since).Scan(&summary.Replied, &avg)
	if err != nil {
		return summary, translate("summary sent", err, apperr.ErrNotFound)
	}
	if avg != nil {
		summary.AvgResponseTimeMs = *avg
	}

	rows, err = s.pool.Query(ctx, `
		SELECT to_char(date_trunc('day', sent_at), 'YYYY-MM-DD') AS day, COUNT(*)
		FROM sent_replies
		WHERE user_id = $1 AND sent_at >= $2
		GROUP BY day ORDER BY day`, userID, since)
	if err != nil {
		return summary, translate("summary daily", err, apperr.ErrNotFound)
	}
	err = forEachRow(rows, func(r pgx.Rows) error {
		var d models.DailyReplyCount
		if err := r.Scan(&d.Date, &d.Count); err != nil {
			return err
		}
		summary.Daily = append(summary.Daily, d)
		return nil
	})
	return summary, translate("summary daily", err, apperr.ErrNotFound)
}

func forEachRow(rows pgx.Rows, fn func(pgx.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func orEmpty(entries []models.ProcessingEntry) []models.ProcessingEntry {
	if entries == nil {
		return []models.ProcessingEntry{}
	}
	return entries
}
