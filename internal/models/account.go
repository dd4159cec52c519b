package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider names a mailbox vendor.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
	ProviderCustom  Provider = "custom"
)

// Valid reports whether p is a supported provider name.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderOutlook, ProviderCustom:
		return true
	}
	return false
}

// Token is the stored OAuth credential of a ConnectedAccount.
type Token struct {
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	TokenType    string    `json:"-" db:"token_type"`
	Expiry       time.Time `json:"-" db:"token_expiry"`
}

// ConnectedAccount is a mailbox linked to a user.
// At most one exists per (UserID, EmailAddress, Provider).
type ConnectedAccount struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Provider     Provider  `json:"provider" db:"provider"`
	EmailAddress string    `json:"email_address" db:"email_address"`
	Token        Token     `json:"-"`
	SyncPaused   bool      `json:"sync_paused" db:"sync_paused"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Key identifies the mailbox loop of the account.
func (a ConnectedAccount) Key() string {
	return MailboxKey(a.Provider, a.UserID, a.EmailAddress)
}

// MailboxKey builds the poll handle key for a mailbox.
func MailboxKey(p Provider, userID uuid.UUID, address string) string {
	return fmt.Sprintf("%s:%s:%s", p, userID, strings.ToLower(address))
}

// CalendarEvent is a Google Calendar event in the shape served by the API.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	HTMLLink    string    `json:"html_link,omitempty"`
}
