package service

import (
	"context"
	"fmt"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
)

// ParentResolver abstracts one authorisation family (AIS consent, PIS
// creation, PIS cancellation) behind a single contract, so the stage
// handlers stay family-agnostic. Resolvers hold no per-request state.
type ParentResolver interface {
	AuthorisationType() domain.AuthorisationType

	AuthorisationByID(ctx context.Context, id string) (domain.Authorisation, error)
	AuthorisationsByParent(ctx context.Context, parentID string) ([]domain.Authorisation, error)

	// NotYetFinalisedParent loads the parent only while it still accepts
	// authorisations for this family, applying the family's lazy
	// expiration check first. Returns store.ErrNotFound otherwise, so an
	// unauthorisable parent is indistinguishable from a missing one.
	NotYetFinalisedParent(ctx context.Context, parentID string) (domain.Authorisable, error)

	// ParentByID loads the parent regardless of status.
	ParentByID(ctx context.Context, parentID string) (domain.Authorisable, error)

	// PersistParent writes the parent through the given store, which may
	// be transaction-scoped.
	PersistParent(ctx context.Context, st store.Store, parent domain.Authorisable) error

	// OneFactorEligible reports whether a successful PSU authentication
	// alone finalises the authorisation for this parent.
	OneFactorEligible(parent domain.Authorisable) bool

	// MarkAuthorised, MarkPartiallyAuthorised and MarkRejected apply the
	// family's status transition in memory; the caller persists.
	MarkAuthorised(parent domain.Authorisable) domain.Authorisable
	MarkPartiallyAuthorised(parent domain.Authorisable) domain.Authorisable
	MarkRejected(parent domain.Authorisable) domain.Authorisable

	// OnParentAuthorised runs the family's post-authorisation hook inside
	// the caller's transaction.
	OnParentAuthorised(ctx context.Context, st store.Store, parent domain.Authorisable) error

	IsConfirmationExpired(parent domain.Authorisable) bool
	CheckAndUpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error)
	UpdateOnConfirmationExpiration(ctx context.Context, parent domain.Authorisable) (domain.Authorisable, error)
}

// ResolverSet maps each authorisation family to its resolver. The set is
// closed; asking for an unknown family is a programming error and panics.
type ResolverSet struct {
	byType map[domain.AuthorisationType]ParentResolver
}

func NewResolverSet(st store.Store, expiry *ConfirmationExpirationService, profile Profile) *ResolverSet {
	return &ResolverSet{byType: map[domain.AuthorisationType]ParentResolver{
		domain.AuthorisationAisConsent: &aisResolver{
			resolverBase: resolverBase{store: st, family: domain.AuthorisationAisConsent},
			expiry:       expiry,
			scaRequired:  profile.OneTimeAvailableAccountsScaRequired,
		},
		domain.AuthorisationPisCreation: &pisResolver{
			resolverBase: resolverBase{store: st, family: domain.AuthorisationPisCreation},
			expiry:       expiry,
		},
		domain.AuthorisationPisCancellation: &pisCancelResolver{
			resolverBase: resolverBase{store: st, family: domain.AuthorisationPisCancellation},
		},
	}}
}

// ForType returns the resolver for a family.
func (s *ResolverSet) ForType(t domain.AuthorisationType) ParentResolver {
	r, ok := s.byType[t]
	if !ok {
		panic(fmt.Sprintf("service: no resolver registered for authorisation type %q", t))
	}
	return r
}

// resolverBase carries the authorisation lookups every family shares.
type resolverBase struct {
	store  store.Store
	family domain.AuthorisationType
}

func (b *resolverBase) AuthorisationType() domain.AuthorisationType {
	return b.family
}

func (b *resolverBase) AuthorisationByID(ctx context.Context, id string) (domain.Authorisation, error) {
	return b.store.Authorisations().GetByID(ctx, id)
}

func (b *resolverBase) AuthorisationsByParent(ctx context.Context, parentID string) ([]domain.Authorisation, error) {
	return b.store.Authorisations().ListByParent(ctx, parentID, b.family)
}
