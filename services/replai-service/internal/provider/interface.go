// Package provider abstracts the mailbox vendors behind one capability
// interface: list unread, fetch, send and mark read.
package provider

import (
	"context"

	"github.com/stoik/replai/internal/models"
)

// MailboxProvider defines the interface for mailbox clients (Gmail, Outlook, IMAP)
type MailboxProvider interface {
	// ListUnread returns at most max unread inbound messages
	ListUnread(ctx context.Context, max int64) ([]models.MessageRef, error)

	// GetMessage fetches and extracts a full message
	GetMessage(ctx context.Context, id string) (models.MessageContent, error)

	// Send delivers a raw base64url MIME message in the given thread
	Send(ctx context.Context, raw, threadID string) (models.MessageRef, error)

	// MarkRead clears the unread flag of a message
	MarkRead(ctx context.Context, id string) error
}

// Factory builds the MailboxProvider for a connected account.
type Factory interface {
	ForAccount(ctx context.Context, account models.ConnectedAccount) (MailboxProvider, error)
}
