package service

import (
	"context"
	"fmt"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
)

// pisResolver binds the authorisation machinery to payment creation.
type pisResolver struct {
	resolverBase
	expiry *ConfirmationExpirationService
}

func (r *pisResolver) NotYetFinalisedParent(ctx context.Context, parentID string) (domain.Authorisable, error) {
	p, err := r.store.Payments().GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	updated, err := r.expiry.CheckAndUpdatePayment(ctx, &p)
	if err != nil {
		return nil, err
	}
	if !updated.TransactionStatus.AcceptsCreationAuthorisation() {
		return nil, store.ErrNotFound
	}
	return updated, nil
}

func (r *pisResolver) ParentByID(ctx context.Context, parentID string) (domain.Authorisable, error) {
	p, err := r.store.Payments().GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pisResolver) PersistParent(ctx context.Context, st store.Store, parent domain.Authorisable) error {
	return st.Payments().Update(ctx, *mustPayment(parent))
}

// OneFactorEligible is always false for payments; moving money never
// skips the SCA method step.
func (r *pisResolver) OneFactorEligible(parent domain.Authorisable) bool {
	return false
}

func (r *pisResolver) MarkAuthorised(parent domain.Authorisable) domain.Authorisable {
	p := mustPayment(parent)
	p.TransactionStatus = domain.TransactionAccepted
	return p
}

func (r *pisResolver) MarkPartiallyAuthorised(parent domain.Authorisable) domain.Authorisable {
	p := mustPayment(parent)
	p.TransactionStatus = domain.TransactionPartiallyAccepted
	return p
}

func (r *pisResolver) MarkRejected(parent domain.Authorisable) domain.Authorisable {
	p := mustPayment(parent)
	p.TransactionStatus = domain.TransactionRejected
	return p
}

func (r *pisResolver) OnParentAuthorised(ctx context.Context, st store.Store, parent domain.Authorisable) error {
	return nil
}

func (r *pisResolver) IsConfirmationExpired(parent domain.Authorisable) bool {
	return r.expiry.IsPaymentExpired(mustPayment(parent))
}

func (r *pisResolver) CheckAndUpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error) {
	return r.expiry.CheckAndUpdatePayment(ctx, mustPayment(parent))
}

func (r *pisResolver) UpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error) {
	return r.expiry.UpdatePaymentOnExpiration(ctx, mustPayment(parent))
}

func mustPayment(parent domain.Authorisable) *domain.Payment {
	p, ok := parent.(*domain.Payment)
	if !ok {
		panic(fmt.Sprintf("service: PIS resolver received %T, want *domain.Payment", parent))
	}
	return p
}
