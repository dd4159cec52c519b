package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is the coarse classification bucket of a received email.
type Category string

const (
	CategoryPrimary    Category = "primary"
	CategorySocial     Category = "social"
	CategoryPromotions Category = "promotions"
	CategoryUpdates    Category = "updates"
	CategoryForums     Category = "forums"
	CategoryImportant  Category = "important"
)

// Sentiment is the lexical tone of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Processing states of an InboundMessage.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Address is a parsed mailbox address.
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachment_id,omitempty"`
}

// MessageRef identifies a message in the remote mailbox.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// MessageContent is the provider-neutral view of a fetched message.
type MessageContent struct {
	ProviderMessageID string            `json:"provider_message_id"`
	ThreadID          string            `json:"thread_id"`
	MessageIDHeader   string            `json:"message_id_header,omitempty"`
	Subject           string            `json:"subject"`
	Snippet           string            `json:"snippet"`
	From              Address           `json:"from"`
	To                []Address         `json:"to"`
	Date              string            `json:"date"`
	ReceivedAt        time.Time         `json:"received_at"`
	PlainBody         string            `json:"plain_body"`
	HTMLBody          *string           `json:"html_body"`
	Attachments       []Attachment      `json:"attachments,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
}

// MessageBody is the stored text and html body of an InboundMessage.
type MessageBody struct {
	Text string  `json:"text"`
	HTML *string `json:"html"`
}

// ProcessingEntry is one line of an InboundMessage processing log.
type ProcessingEntry struct {
	At      time.Time `json:"at"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
}

// InboundMessage is the persisted record of a received email.
type InboundMessage struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	UserID            uuid.UUID         `json:"user_id" db:"user_id"`
	AccountID         uuid.UUID         `json:"account_id" db:"account_id"`
	ProviderMessageID string            `json:"provider_message_id" db:"provider_message_id"`
	ThreadID          string            `json:"thread_id" db:"thread_id"`
	Subject           string            `json:"subject" db:"subject"`
	Snippet           string            `json:"snippet" db:"snippet"`
	Body              MessageBody       `json:"body"`
	From              Address           `json:"from"`
	To                []string          `json:"to" db:"to_addrs"`
	ReceivedAt        time.Time         `json:"received_at" db:"received_at"`
	Category          Category          `json:"category" db:"category"`
	Sentiment         Sentiment         `json:"sentiment" db:"sentiment"`
	Urgent            bool              `json:"urgent" db:"is_urgent"`
	Bulk              bool              `json:"bulk" db:"is_bulk"`
	Processed         bool              `json:"processed" db:"processed"`
	ProcessingStatus  string            `json:"processing_status" db:"processing_status"`
	ProcessingLog     []ProcessingEntry `json:"processing_log" db:"processing_log"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// SentReply is created exactly once per successful send.
type SentReply struct {
	ID                uuid.UUID `json:"id" db:"id"`
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	AccountID         uuid.UUID `json:"account_id" db:"account_id"`
	From              string    `json:"from" db:"from_addr"`
	To                []string  `json:"to" db:"to_addrs"`
	Subject           string    `json:"subject" db:"subject"`
	Body              string    `json:"body" db:"body"`
	ThreadID          string    `json:"thread_id" db:"thread_id"`
	ProviderMessageID string    `json:"provider_message_id" db:"provider_message_id"`
	ReplyToMessageID  string    `json:"reply_to_message_id" db:"reply_to_message_id"`
	ResponseTimeMs    int64     `json:"response_time_ms" db:"response_time_ms"`
	Category          Category  `json:"category" db:"category"`
	Sentiment         Sentiment `json:"sentiment" db:"sentiment"`
	AutoGenerated     bool      `json:"auto_generated" db:"auto_generated"`
	IsReply           bool      `json:"is_reply" db:"is_reply"`
	SentAt            time.Time `json:"sent_at" db:"sent_at"`
}

// AnalyticsSummary aggregates a user's inbound and sent records for the dashboard.
type AnalyticsSummary struct {
	Received          int               `json:"received"`
	Replied           int               `json:"replied"`
	ByCategory        map[Category]int  `json:"by_category"`
	BySentiment       map[Sentiment]int `json:"by_sentiment"`
	AvgResponseTimeMs float64           `json:"avg_response_time_ms"`
	Daily             []DailyReplyCount `json:"daily"`
}

// DailyReplyCount is the number of replies sent on a given day (YYYY-MM-DD).
type DailyReplyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
