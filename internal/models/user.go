package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a billing tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// PlanLimits are the monthly reply and mailbox allowances of a plan.
type PlanLimits struct {
	Emails   int `json:"emails"`
	Accounts int `json:"accounts"`
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:     {Emails: 50, Accounts: 1},
	PlanPro:      {Emails: 1000, Accounts: 3},
	PlanBusiness: {Emails: 10000, Accounts: 10},
}

// Limits returns the allowances of p; unknown plans get the free tier.
func (p Plan) Limits() PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

// User model for database
type User struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	Email              string    `json:"email" db:"email"`
	Name               string    `json:"name" db:"name"`
	PasswordHash       string    `json:"-" db:"password_hash"`
	Plan               Plan      `json:"plan" db:"plan"`
	StripeCustomerID   string    `json:"-" db:"stripe_customer_id"`
	SubscriptionStatus string    `json:"subscription_status" db:"subscription_status"`
	CustomPrompt       string    `json:"custom_prompt" db:"custom_prompt"`
	BlockedSenders     []string  `json:"blocked_senders" db:"blocked_senders"`
	EmailsUsed         int       `json:"emails_used" db:"emails_used"`
	UsagePeriodStart   time.Time `json:"usage_period_start" db:"usage_period_start"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// DisplayName is the name used to sign replies.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// EmailsUsedAt returns the replies counted in the usage period active at now.
// A period older than a month counts as already reset.
func (u User) EmailsUsedAt(now time.Time) int {
	if u.UsagePeriodStart.AddDate(0, 1, 0).Before(now) {
		return 0
	}
	return u.EmailsUsed
}

// UsageMeter is one line of the usage response.
type UsageMeter struct {
	Used       int     `json:"used"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// NewUsageMeter computes the percentage of used over total, capped at 100.
func NewUsageMeter(used, total int) UsageMeter {
	m := UsageMeter{Used: used, Total: total}
	if total > 0 {
		m.Percentage = float64(used) * 100 / float64(total)
		if m.Percentage > 100 {
			m.Percentage = 100
		}
	}
	return m
}

// Usage is the body of GET /api/user/usage.
type Usage struct {
	Emails   UsageMeter `json:"emails"`
	Accounts UsageMeter `json:"accounts"`
}
