package provider

import (
	"context"
	"fmt"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

// StubProvider stands in for vendors without an implementation yet
// (Outlook, custom IMAP). Every call fails with ErrNotImplemented.
type StubProvider struct {
	name models.Provider
}

var _ MailboxProvider = (*StubProvider)(nil)

// NewOutlookProvider returns the Outlook stub
func NewOutlookProvider() *StubProvider {
	return &StubProvider{name: models.ProviderOutlook}
}

// NewIMAPProvider returns the custom IMAP stub
func NewIMAPProvider() *StubProvider {
	return &StubProvider{name: models.ProviderCustom}
}

func (s *StubProvider) err() error {
	return fmt.Errorf("%w: %s provider", apperr.ErrNotImplemented, s.name)
}

func (s *StubProvider) ListUnread(context.Context, int64) ([]models.MessageRef, error) {
	return nil, s.err()
}

func (s *StubProvider) GetMessage(context.Context, string) (models.MessageContent, error) {
	return models.MessageContent{}, s.err()
}

func (s *StubProvider) Send(context.Context, string, string) (models.MessageRef, error) {
	return models.MessageRef{}, s.err()
}

func (s *StubProvider) MarkRead(context.Context, string) error {
	return s.err()
}
