package service

import (
	"context"
	"fmt"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
)

// aisResolver binds the authorisation machinery to AIS consents.
type aisResolver struct {
	resolverBase
	expiry      *ConfirmationExpirationService
	scaRequired bool
}

func (r *aisResolver) NotYetFinalisedParent(ctx context.Context, parentID string) (domain.Authorisable, error) {
	c, err := r.store.Consents().GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	updated, err := r.expiry.CheckAndUpdateConsent(ctx, &c)
	if err != nil {
		return nil, err
	}
	if updated.Status.IsFinalised() {
		return nil, store.ErrNotFound
	}
	return updated, nil
}

func (r *aisResolver) ParentByID(ctx context.Context, parentID string) (domain.Authorisable, error) {
	c, err := r.store.Consents().GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *aisResolver) PersistParent(ctx context.Context, st store.Store, parent domain.Authorisable) error {
	c := mustConsent(parent)
	return st.Consents().Update(ctx, *c)
}

func (r *aisResolver) OneFactorEligible(parent domain.Authorisable) bool {
	return mustConsent(parent).OneFactorEligible(r.scaRequired)
}

func (r *aisResolver) MarkAuthorised(parent domain.Authorisable) domain.Authorisable {
	c := mustConsent(parent)
	c.Status = domain.ConsentValid
	return c
}

func (r *aisResolver) MarkPartiallyAuthorised(parent domain.Authorisable) domain.Authorisable {
	c := mustConsent(parent)
	c.Status = domain.ConsentPartiallyAuthorised
	return c
}

func (r *aisResolver) MarkRejected(parent domain.Authorisable) domain.Authorisable {
	c := mustConsent(parent)
	c.Status = domain.ConsentRejected
	return c
}

// OnParentAuthorised terminates older recurring consents of the same
// (TPP, PSU) pair now that this consent became valid.
func (r *aisResolver) OnParentAuthorised(ctx context.Context, st store.Store, parent domain.Authorisable) error {
	c := mustConsent(parent)
	if c.OneAccessType {
		return nil
	}
	_, err := st.Consents().TerminateOldConsents(ctx, *c)
	return err
}

func (r *aisResolver) IsConfirmationExpired(parent domain.Authorisable) bool {
	return r.expiry.IsConsentExpired(mustConsent(parent))
}

func (r *aisResolver) CheckAndUpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error) {
	return r.expiry.CheckAndUpdateConsent(ctx, mustConsent(parent))
}

func (r *aisResolver) UpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error) {
	return r.expiry.UpdateConsentOnExpiration(ctx, mustConsent(parent))
}

func mustConsent(parent domain.Authorisable) *domain.Consent {
	c, ok := parent.(*domain.Consent)
	if !ok {
		panic(fmt.Sprintf("service: AIS resolver received %T, want *domain.Consent", parent))
	}
	return c
}
