package service

import (
	"context"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
)

// ConfirmationExpirationService decides whether a parent resource waited
// too long for its authorisations to finalise, and moves lapsed parents
// to their expired status. Enforcement happens lazily when the parent is
// loaded; nothing runs on a timer.
type ConfirmationExpirationService struct {
	Store  store.Store
	Window time.Duration
}

// IsConsentExpired reports whether the consent lapsed, either past its
// TPP-requested ValidUntil or past the confirmation window while still
// waiting for finalised authorisations. A zero Window disables the
// confirmation check.
func (s *ConfirmationExpirationService) IsConsentExpired(c *domain.Consent) bool {
	if c.Status.IsFinalised() {
		return false
	}
	now := time.Now()
	if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
		return true
	}
	if s.Window <= 0 {
		return false
	}
	awaiting := c.Status == domain.ConsentReceived || c.Status == domain.ConsentPartiallyAuthorised
	return awaiting && now.After(c.CreatedAt.Add(s.Window))
}

// IsPaymentExpired reports whether a payment still open for creation
// authorisations outlived the confirmation window.
func (s *ConfirmationExpirationService) IsPaymentExpired(p *domain.Payment) bool {
	if s.Window <= 0 {
		return false
	}
	return p.TransactionStatus.AcceptsCreationAuthorisation() &&
		time.Now().After(p.CreatedAt.Add(s.Window))
}

// CheckAndUpdateConsent persists the expired status if the consent
// lapsed, otherwise returns it unchanged.
func (s *ConfirmationExpirationService) CheckAndUpdateConsent(ctx context.Context, c *domain.Consent) (*domain.Consent, error) {
	if !s.IsConsentExpired(c) {
		return c, nil
	}
	return s.UpdateConsentOnExpiration(ctx, c)
}

// UpdateConsentOnExpiration unconditionally moves the consent to expired.
func (s *ConfirmationExpirationService) UpdateConsentOnExpiration(ctx context.Context, c *domain.Consent) (*domain.Consent, error) {
	c.Status = domain.ConsentExpired
	if err := s.Store.Consents().Update(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckAndUpdatePayment persists the rejected status if the payment
// lapsed, otherwise returns it unchanged.
func (s *ConfirmationExpirationService) CheckAndUpdatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	if !s.IsPaymentExpired(p) {
		return p, nil
	}
	return s.UpdatePaymentOnExpiration(ctx, p)
}

// UpdatePaymentOnExpiration unconditionally moves the payment to RJCT.
// Payments carry no dedicated expired status, so rejection stands in.
func (s *ConfirmationExpirationService) UpdatePaymentOnExpiration(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	p.TransactionStatus = domain.TransactionRejected
	if err := s.Store.Payments().Update(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}
