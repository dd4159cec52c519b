package provider

import (
	"context"
	"fmt"

	gm "google.golang.org/api/gmail/v1"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/extract"
)

const gmailUser = "me"

// UnreadQuery is the Gmail search used to find mail to answer.
func UnreadQuery(lookbackDays int) string {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}
	return fmt.Sprintf("is:unread -in:chats -from:me newer_than:%dd", lookbackDays)
}

// GmailProvider implements the MailboxProvider interface for Gmail
type GmailProvider struct {
	svc          *gm.Service
	lookbackDays int
}

var _ MailboxProvider = (*GmailProvider)(nil)

// NewGmailProvider wraps an authenticated Gmail service
func NewGmailProvider(svc *gm.Service, lookbackDays int) *GmailProvider {
	return &GmailProvider{svc: svc, lookbackDays: lookbackDays}
}

// ListUnread implements MailboxProvider.ListUnread for Gmail
func (g *GmailProvider) ListUnread(ctx context.Context, max int64) ([]models.MessageRef, error) {
	resp, err := g.svc.Users.Messages.List(gmailUser).
		Q(UnreadQuery(g.lookbackDays)).
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperr.Provider("list unread", err)
	}

	refs := make([]models.MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, models.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

// GetMessage implements MailboxProvider.GetMessage for Gmail
func (g *GmailProvider) GetMessage(ctx context.Context, id string) (models.MessageContent, error) {
	msg, err := g.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return models.MessageContent{}, apperr.Provider("get message", err)
	}
	return extract.FromGmail(msg), nil
}

// Send implements MailboxProvider.Send for Gmail
func (g *GmailProvider) Send(ctx context.Context, raw, threadID string) (models.MessageRef, error) {
	sent, err := g.svc.Users.Messages.Send(gmailUser, &gm.Message{
		Raw:      raw,
		ThreadId: threadID,
	}).Context(ctx).Do()
	if err != nil {
		return models.MessageRef{}, apperr.Provider("send reply", err)
	}
	return models.MessageRef{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// MarkRead implements MailboxProvider.MarkRead for Gmail
func (g *GmailProvider) MarkRead(ctx context.Context, id string) error {
	_, err := g.svc.Users.Messages.Modify(gmailUser, id, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return apperr.Provider("mark read", err)
	}
	return nil
}

// Profile returns the address of the authenticated mailbox
func (g *GmailProvider) Profile(ctx context.Context) (string, error) {
	p, err := g.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
	if err != nil {
		return "", apperr.Provider("get profile", err)
	}
	return p.EmailAddress, nil
}
