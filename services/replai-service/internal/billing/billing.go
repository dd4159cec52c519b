// Package billing starts Stripe Checkout subscriptions and applies Stripe
// webhook events to user plans.
package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/config"
)

const (
	metaUserID = "user_id"
	metaPlan   = "plan"
)

// Store applies subscription changes to users.
type Store interface {
	UpdateSubscription(ctx context.Context, userID uuid.UUID, plan models.Plan, status, customerID string) error
	UpdateSubscriptionByCustomer(ctx context.Context, customerID string, plan models.Plan, status string) error
}

// checkoutSessions is the slice of the Stripe client used to start checkouts.
type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Service handles checkout and webhooks.
type Service struct {
	sessions      checkoutSessions
	webhookSecret string
	priceIDs      map[string]string
	frontendURL   string
	store         Store
	logger        *log.Logger
}

// NewService creates a billing Service backed by the Stripe API.
func NewService(cfg config.StripeConfig, frontendURL string, store Store, logger *log.Logger) *Service {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &Service{
		sessions:      sc.CheckoutSessions,
		webhookSecret: cfg.WebhookSecret,
		priceIDs:      cfg.PriceIDs,
		frontendURL:   frontendURL,
		store:         store,
		logger:        logger,
	}
}

// Checkout starts a subscription checkout for plan and returns its URL.
func (s *Service) Checkout(ctx context.Context, user models.User, plan models.Plan) (string, error) {
	if plan == models.PlanFree || !plan.Valid() {
		return "", apperr.Validation("plan must be pro or business")
	}
	priceID := s.priceIDs[string(plan)]
	if priceID == "" {
		return "", fmt.Errorf("%w: no price configured for plan %s", apperr.ErrNotImplemented, plan)
	}

	meta := map[string]string{metaUserID: user.ID.String(), metaPlan: string(plan)}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(s.frontendURL + "/dashboard?checkout=success"),
		CancelURL:         stripe.String(s.frontendURL + "/pricing?checkout=cancelled"),
		ClientReferenceID: stripe.String(user.ID.String()),
		SubscriptionData:  &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta},
	}
	params.Context = ctx
	if user.StripeCustomerID != "" {
		params.Customer = stripe.String(user.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return "", apperr.Provider("create checkout session", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and applies a Stripe event. Unhandled event types
// are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return apperr.Validation("invalid webhook signature: %v", err)
	}

	logger := s.logger.With("event_id", event.ID, "type", event.Type)
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return apperr.Validation("malformed checkout session: %v", err)
		}
		return s.applyCheckout(ctx, logger, &sess)

	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperr.Validation("malformed subscription: %v", err)
		}
		if sub.Customer == nil {
			return apperr.Validation("subscription without customer")
		}
		plan := planFor(sub.Status, sub.Metadata[metaPlan])
		logger.Info("Subscription changed", "customer", sub.Customer.ID, "plan", plan, "status", sub.Status)
		return s.store.UpdateSubscriptionByCustomer(ctx, sub.Customer.ID, plan, string(sub.Status))

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperr.Validation("malformed subscription: %v", err)
		}
		if sub.Customer == nil {
			return apperr.Validation("subscription without customer")
		}
		logger.Info("Subscription cancelled", "customer", sub.Customer.ID)
		return s.store.UpdateSubscriptionByCustomer(ctx, sub.Customer.ID, models.PlanFree, string(stripe.SubscriptionStatusCanceled))

	default:
		logger.Debug("Ignoring webhook event")
		return nil
	}
}

func (s *Service) applyCheckout(ctx context.Context, logger *log.Logger, sess *stripe.CheckoutSession) error {
	userID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		return apperr.Validation("checkout session without user reference")
	}
	plan := models.Plan(sess.Metadata[metaPlan])
	if !plan.Valid() {
		return apperr.Validation("checkout session with unknown plan %q", sess.Metadata[metaPlan])
	}
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	logger.Info("Checkout completed", "user_id", userID, "plan", plan)
	return s.store.UpdateSubscription(ctx, userID, plan, string(stripe.SubscriptionStatusActive), customerID)
}

// planFor keeps the paid plan only while the subscription is usable.
func planFor(status stripe.SubscriptionStatus, plan string) models.Plan {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		if p := models.Plan(plan); p.Valid() {
			return p
		}
	}
	return models.PlanFree
}
