package service

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
)

// pisCancelResolver binds the authorisation machinery to payment
// cancellation. Cancellations run against payments that may already be
// accepted, so the eligibility check and the confirmation-expiration
// rules differ from payment creation on purpose.
type pisCancelResolver struct {
	resolverBase
}

func (r *pisCancelResolver) NotYetFinalisedParent(ctx context.Context, parentID string) (domain.Authorisable, error) {
	p, err := r.store.Payments().GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !p.TransactionStatus.AcceptsCancellationAuthorisation() {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r *pisCancelResolver) ParentByID(ctx context.Context, parentID string) (domain.Authorisable, error) {
	p, err := r.store.Payments().GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pisCancelResolver) PersistParent(ctx context.Context, st store.Store, parent domain.Authorisable) error {
	return st.Payments().Update(ctx, *mustPayment(parent))
}

func (r *pisCancelResolver) OneFactorEligible(parent domain.Authorisable) bool {
	return false
}

func (r *pisCancelResolver) MarkAuthorised(parent domain.Authorisable) domain.Authorisable {
	p := mustPayment(parent)
	p.TransactionStatus = domain.TransactionCancelled
	return p
}

// MarkPartiallyAuthorised leaves the payment untouched: until every PSU
// signed the cancellation, the payment keeps the status it had.
func (r *pisCancelResolver) MarkPartiallyAuthorised(parent domain.Authorisable) domain.Authorisable {
	return parent
}

// MarkRejected leaves the payment untouched: a failed cancellation
// attempt must not reject the payment it tried to cancel.
func (r *pisCancelResolver) MarkRejected(parent domain.Authorisable) domain.Authorisable {
	return parent
}

func (r *pisCancelResolver) OnParentAuthorised(ctx context.Context, st store.Store, parent domain.Authorisable) error {
	return nil
}

// Cancellations are exempt from confirmation expiration: a PSU may
// cancel a payment at any point while the payment is still cancellable.
func (r *pisCancelResolver) IsConfirmationExpired(parent domain.Authorisable) bool {
	return false
}

func (r *pisCancelResolver) CheckAndUpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error) {
	return parent, nil
}

func (r *pisCancelResolver) UpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error) {
	return parent, nil
}
