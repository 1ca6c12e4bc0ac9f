// Package upgrade builds the Stripe Checkout link shown when a professional hits
// the free-tier quota.
package upgrade

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/agendly/agendly/services/booking-service/internal/profilecache"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

type StripeConfig struct {
	SecretKey  string
	PriceID    string
	SuccessURL string
	CancelURL  string
	// Backend overrides the Stripe API backend, for tests.
	Backend stripe.Backend
	// LinkTTL bounds how long a created session URL is reused.
	LinkTTL time.Duration
}

// StripeLinker creates subscription Checkout Sessions. A zero config disables it.
type StripeLinker struct {
	client  checkoutsession.Client
	cfg     StripeConfig
	links   *profilecache.Cache[string, string]
	enabled bool
}

func NewStripeLinker(cfg StripeConfig) *StripeLinker {
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 10 * time.Minute
	}
	backend := cfg.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeLinker{
		client:  checkoutsession.Client{B: backend, Key: cfg.SecretKey},
		cfg:     cfg,
		links:   profilecache.New[string, string](cfg.LinkTTL, nil),
		enabled: cfg.SecretKey != "" && cfg.PriceID != "" && cfg.SuccessURL != "" && cfg.CancelURL != "",
	}
}

func (l *StripeLinker) Enabled() bool { return l != nil && l.enabled }

// CheckoutURL returns "" without error when Stripe is not configured.
func (l *StripeLinker) CheckoutURL(ctx context.Context, professionalID string) (string, error) {
	if !l.Enabled() {
		return "", nil
	}
	if professionalID == "" {
		return "", errors.New("professional id required")
	}
	if url, ok := l.links.Get(professionalID); ok {
		return url, nil
	}

	meta := map[string]string{
		"professional_id": professionalID,
		"tier":            storage.TierPro,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(l.cfg.SuccessURL),
		CancelURL:         stripe.String(l.cfg.CancelURL),
		ClientReferenceID: stripe.String(professionalID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(l.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	params.Context = ctx

	sess, err := l.client.New(params)
	if err != nil {
		return "", err
	}
	l.links.Set(professionalID, sess.URL)
	return sess.URL, nil
}
