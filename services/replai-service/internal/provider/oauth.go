package provider

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	gm "google.golang.org/api/gmail/v1"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/config"
)

// GoogleScopes are requested when a user connects a Gmail mailbox.
var GoogleScopes = []string{
	gm.GmailModifyScope,
	gm.GmailSendScope,
	calendar.CalendarScope,
	"openid",
	"email",
	"profile",
}

// OAuthConfig builds the Google OAuth2 client configuration.
func OAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       GoogleScopes,
		Endpoint:     google.Endpoint,
	}
}

// ToOAuth2 converts a stored credential.
func ToOAuth2(t models.Token) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// FromOAuth2 converts a vendor token for storage.
func FromOAuth2(t *oauth2.Token) models.Token {
	return models.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// TokenStore persists refreshed credentials.
type TokenStore interface {
	UpdateToken(ctx context.Context, accountID uuid.UUID, token models.Token) error
}

// persistingSource writes every newly minted access token back to the store
// so restarts do not need to refresh again.
type persistingSource struct {
	base      oauth2.TokenSource
	accountID uuid.UUID
	store     TokenStore
	logger    *log.Logger

	mu   sync.Mutex
	last string
}

// NewPersistingTokenSource wraps a refreshing token source for account.
func NewPersistingTokenSource(ctx context.Context, oauth *oauth2.Config, account models.ConnectedAccount, store TokenStore, logger *log.Logger) oauth2.TokenSource {
	initial := ToOAuth2(account.Token)
	return &persistingSource{
		base:      oauth2.ReuseTokenSource(initial, oauth.TokenSource(ctx, initial)),
		accountID: account.ID,
		store:     store,
		logger:    logger,
		last:      initial.AccessToken,
	}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	changed := tok.AccessToken != p.last
	p.last = tok.AccessToken
	p.mu.Unlock()

	if changed && p.store != nil {
		if err := p.store.UpdateToken(context.Background(), p.accountID, FromOAuth2(tok)); err != nil {
			p.logger.Warn("Failed to persist refreshed token", "account_id", p.accountID, "error", err)
		}
	}
	return tok, nil
}
