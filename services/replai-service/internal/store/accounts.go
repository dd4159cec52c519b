package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

const accountColumns = `id, user_id, provider, email_address, access_token, refresh_token,
	token_type, token_expiry, sync_paused, created_at`

func scanAccount(row pgx.Row) (models.ConnectedAccount, error) {
	var (
		a      models.ConnectedAccount
		expiry *time.Time
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Provider,
		&a.EmailAddress,
		&a.Token.AccessToken,
		&a.Token.RefreshToken,
		&a.Token.TokenType,
		&expiry,
		&a.SyncPaused,
		&a.CreatedAt,
	)
	if expiry != nil {
		a.Token.Expiry = *expiry
	}
	return a, err
}

func collectAccounts(rows pgx.Rows) ([]models.ConnectedAccount, error) {
	defer rows.Close()

	var accounts []models.ConnectedAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpsertAccount links a mailbox to a user, refreshing the stored token when
// the (user, address, provider) triple already exists.
func (s *Store) UpsertAccount(ctx context.Context, a *models.ConnectedAccount) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.EmailAddress = strings.ToLower(strings.TrimSpace(a.EmailAddress))

	query := `
		INSERT INTO connected_accounts (id, user_id, provider, email_address, access_token, refresh_token, token_type, token_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, email_address, provider)
		DO UPDATE SET access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token = '' THEN connected_accounts.refresh_token ELSE EXCLUDED.refresh_token END,
			token_type = EXCLUDED.token_type,
			token_expiry = EXCLUDED.token_expiry
		RETURNING id, sync_paused, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		a.ID,
		a.UserID,
		a.Provider,
		a.EmailAddress,
		a.Token.AccessToken,
		a.Token.RefreshToken,
		a.Token.TokenType,
		nullTime(a.Token.Expiry),
	).Scan(&a.ID, &a.SyncPaused, &a.CreatedAt)
	return translate("upsert account", err, apperr.ErrNotFound)
}

// GetAccount looks up one mailbox. A missing row is apperr.ErrNotConnected.
func (s *Store) GetAccount(ctx context.Context, userID uuid.UUID, provider models.Provider, address string) (models.ConnectedAccount, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM connected_accounts
		WHERE user_id = $1 AND provider = $2 AND email_address = $3`,
		userID, provider, strings.ToLower(address))
	a, err := scanAccount(row)
	return a, translate("get account", err, apperr.ErrNotConnected)
}

// FindAccount looks up a user's mailbox by address regardless of provider.
func (s *Store) FindAccount(ctx context.Context, userID uuid.UUID, address string) (models.ConnectedAccount, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM connected_accounts
		WHERE user_id = $1 AND email_address = $2
		ORDER BY created_at LIMIT 1`,
		userID, strings.ToLower(address))
	a, err := scanAccount(row)
	return a, translate("find account", err, apperr.ErrNotConnected)
}

// ListAccounts returns the mailboxes of one user.
func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.ConnectedAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM connected_accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, translate("list accounts", err, apperr.ErrNotFound)
	}
	accounts, err := collectAccounts(rows)
	return accounts, translate("list accounts", err, apperr.ErrNotFound)
}

// ListAllAccounts returns every connected mailbox, used to resume polling at startup.
func (s *Store) ListAllAccounts(ctx context.Context) ([]models.ConnectedAccount, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM connected_accounts ORDER BY created_at`)
	if err != nil {
		return nil, translate("list all accounts", err, apperr.ErrNotFound)
	}
	accounts, err := collectAccounts(rows)
	return accounts, translate("list all accounts", err, apperr.ErrNotFound)
}

// CountAccounts returns how many mailboxes a user has linked.
func (s *Store) CountAccounts(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM connected_accounts WHERE user_id = $1`, userID).Scan(&n)
	return n, translate("count accounts", err, apperr.ErrNotFound)
}

// DeleteAccount unlinks every mailbox of the user with the given address.
func (s *Store) DeleteAccount(ctx context.Context, userID uuid.UUID, address string) error {
	return s.execOneAs(ctx, "delete account", apperr.ErrNotConnected,
		`DELETE FROM connected_accounts WHERE user_id = $1 AND email_address = $2`,
		userID, strings.ToLower(address))
}

// SetSyncPaused pauses or resumes polling of a mailbox.
func (s *Store) SetSyncPaused(ctx context.Context, userID uuid.UUID, address string, paused bool) error {
	return s.execOneAs(ctx, "set sync paused", apperr.ErrNotConnected,
		`UPDATE connected_accounts SET sync_paused = $1 WHERE user_id = $2 AND email_address = $3`,
		paused, userID, strings.ToLower(address))
}

// UpdateToken stores a refreshed OAuth token.
func (s *Store) UpdateToken(ctx context.Context, accountID uuid.UUID, token models.Token) error {
	return s.execOneAs(ctx, "update token", apperr.ErrNotConnected, `
		UPDATE connected_accounts
		SET access_token = $1,
			refresh_token = CASE WHEN $2 = '' THEN refresh_token ELSE $2 END,
			token_type = $3, token_expiry = $4
		WHERE id = $5`,
		token.AccessToken, token.RefreshToken, token.TokenType, nullTime(token.Expiry), accountID)
}

func (s *Store) execOneAs(ctx context.Context, op string, notFound error, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return translate(op, err, notFound)
	}
	if tag.RowsAffected() == 0 {
		return translate(op, pgx.ErrNoRows, notFound)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
