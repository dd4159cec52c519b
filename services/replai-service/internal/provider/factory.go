package provider

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

// ClientFactory builds provider clients from stored account credentials.
type ClientFactory struct {
	oauth        *oauth2.Config
	tokens       TokenStore
	lookbackDays int
	logger       *log.Logger
	// extra options for the Google API clients, used to point them elsewhere
	opts []option.ClientOption
}

var _ Factory = (*ClientFactory)(nil)

// NewFactory creates a factory using the Google OAuth configuration.
func NewFactory(oauth *oauth2.Config, tokens TokenStore, lookbackDays int, logger *log.Logger, opts ...option.ClientOption) *ClientFactory {
	return &ClientFactory{
		oauth:        oauth,
		tokens:       tokens,
		lookbackDays: lookbackDays,
		logger:       logger,
		opts:         opts,
	}
}

// ForAccount creates a provider instance based on the account's vendor
func (f *ClientFactory) ForAccount(ctx context.Context, account models.ConnectedAccount) (MailboxProvider, error) {
	switch account.Provider {
	case models.ProviderGoogle:
		svc, err := f.Gmail(ctx, account)
		if err != nil {
			return nil, err
		}
		return NewGmailProvider(svc, f.lookbackDays), nil
	case models.ProviderOutlook:
		return NewOutlookProvider(), nil
	case models.ProviderCustom:
		return NewIMAPProvider(), nil
	default:
		return nil, apperr.Validation("unknown provider %q", account.Provider)
	}
}

// Gmail returns an authenticated Gmail service for account.
func (f *ClientFactory) Gmail(ctx context.Context, account models.ConnectedAccount) (*gm.Service, error) {
	svc, err := gm.NewService(ctx, f.ClientOptions(ctx, account)...)
	if err != nil {
		return nil, apperr.Provider("gmail client", fmt.Errorf("%s: %w", account.EmailAddress, err))
	}
	return svc, nil
}

// ClientOptions returns the Google API client options carrying the account's
// credentials. The calendar client uses them too.
func (f *ClientFactory) ClientOptions(ctx context.Context, account models.ConnectedAccount) []option.ClientOption {
	ts := NewPersistingTokenSource(ctx, f.oauth, account, f.tokens, f.logger)
	return append([]option.ClientOption{option.WithTokenSource(ts)}, f.opts...)
}

// Exchange trades an OAuth authorization code for a token and resolves the
// address of the mailbox it grants access to.
func (f *ClientFactory) Exchange(ctx context.Context, code string) (string, models.Token, error) {
	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return "", models.Token{}, apperr.Provider("exchange code", err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(f.oauth.TokenSource(ctx, tok))}, f.opts...)
	svc, err := gm.NewService(ctx, opts...)
	if err != nil {
		return "", models.Token{}, apperr.Provider("gmail client", err)
	}
	address, err := NewGmailProvider(svc, f.lookbackDays).Profile(ctx)
	if err != nil {
		return "", models.Token{}, err
	}
	return address, FromOAuth2(tok), nil
}

// AuthCodeURL returns the Google consent page URL for a connect attempt.
// Offline access with forced consent guarantees a refresh token.
func (f *ClientFactory) AuthCodeURL(state string) string {
	return f.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}
