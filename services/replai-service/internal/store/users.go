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

const userColumns = `id, email, name, password_hash, plan, stripe_customer_id, subscription_status,
	custom_prompt, blocked_senders, emails_used, usage_period_start, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.Plan,
		&u.StripeCustomerID,
		&u.SubscriptionStatus,
		&u.CustomPrompt,
		&u.BlockedSenders,
		&u.EmailsUsed,
		&u.UsagePeriodStart,
		&u.CreatedAt,
	)
	return u, err
}

// CreateUser inserts u, assigning ID and timestamps. A duplicate email is an
// apperr.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Plan == "" {
		u.Plan = models.PlanFree
	}
	if u.BlockedSenders == nil {
		u.BlockedSenders = []string{}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UsagePeriodStart = now
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	query := `
		INSERT INTO users (id, email, name, password_hash, plan, blocked_senders, usage_period_start, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.Plan, u.BlockedSenders, now, now)
	return translate("create user", err, apperr.ErrNotFound)
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	return u, translate("get user", err, apperr.ErrNotFound)
}

// GetUserByEmail loads a user by login email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	return u, translate("get user by email", err, apperr.ErrNotFound)
}

// UpdateCustomPrompt saves the user's prompt override. Empty restores the default.
func (s *Store) UpdateCustomPrompt(ctx context.Context, userID uuid.UUID, prompt string) error {
	return s.execOne(ctx, "update custom prompt",
		`UPDATE users SET custom_prompt = $1 WHERE id = $2`, prompt, userID)
}

// UpdateBlockedSenders replaces the user's block list.
func (s *Store) UpdateBlockedSenders(ctx context.Context, userID uuid.UUID, list []string) error {
	if list == nil {
		list = []string{}
	}
	return s.execOne(ctx, "update blocked senders",
		`UPDATE users SET blocked_senders = $1 WHERE id = $2`, list, userID)
}

// UpdateSubscription sets plan, status and the Stripe customer of a user.
func (s *Store) UpdateSubscription(ctx context.Context, userID uuid.UUID, plan models.Plan, status, customerID string) error {
	return s.execOne(ctx, "update subscription", `
		UPDATE users
		SET plan = $1, subscription_status = $2,
			stripe_customer_id = CASE WHEN $3 = '' THEN stripe_customer_id ELSE $3 END
		WHERE id = $4`,
		plan, status, customerID, userID)
}

// UpdateSubscriptionByCustomer sets plan and status for the user owning a
// Stripe customer id.
func (s *Store) UpdateSubscriptionByCustomer(ctx context.Context, customerID string, plan models.Plan, status string) error {
	return s.execOne(ctx, "update subscription by customer",
		`UPDATE users SET plan = $1, subscription_status = $2 WHERE stripe_customer_id = $3`,
		plan, status, customerID)
}

// IncrementEmailsUsed counts one auto-reply against the monthly allowance,
// starting a new period when the current one is older than a month.
func (s *Store) IncrementEmailsUsed(ctx context.Context, userID uuid.UUID) error {
	return s.execOne(ctx, "increment emails used", `
		UPDATE users
		SET emails_used = CASE WHEN usage_period_start < now() - interval '1 month' THEN 1 ELSE emails_used + 1 END,
			usage_period_start = CASE WHEN usage_period_start < now() - interval '1 month' THEN now() ELSE usage_period_start END
		WHERE id = $1`,
		userID)
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	return s.execOneAs(ctx, op, apperr.ErrNotFound, query, args...)
}
