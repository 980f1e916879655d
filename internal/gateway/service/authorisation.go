package service

import (
	"context"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/idx"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// AuthorisationService creates and reads authorisations. Stepping
// through the state machine is the Dispatcher's job.
type AuthorisationService struct {
	Store     store.Store
	Resolvers *ResolverSet
	Closing   *ClosingService
	Selector  *ApproachSelector
	Redirect  *RedirectService
	Profile   Profile
}

// Start creates a fresh authorisation in the received status. The parent
// must still accept authorisations for the family; creation and the
// closing of the PSU's earlier live attempts commit together.
func (s *AuthorisationService) Start(ctx context.Context, family domain.AuthorisationType, parentID string, psu domain.PsuData) (domain.Authorisation, error) {
	resolver := s.Resolvers.ForType(family)
	if _, err := resolver.NotYetFinalisedParent(ctx, parentID); err != nil {
		return domain.Authorisation{}, err
	}

	now := time.Now().UTC()
	auth := domain.Authorisation{
		ID:          idx.New().String(),
		ParentID:    parentID,
		ParentType:  family,
		Psu:         psu,
		ScaStatus:   domain.ScaStatusReceived,
		ScaApproach: s.Selector.Initial(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if s.Profile.AuthorisationTTL > 0 {
		auth.ExpiresAt = now.Add(s.Profile.AuthorisationTTL)
	}
	if auth.ScaApproach == domain.ScaApproachRedirect && s.Profile.RedirectURLTTL > 0 {
		exp := now.Add(s.Profile.RedirectURLTTL)
		auth.RedirectExpiresAt = &exp
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		// The close runs before the insert so the fresh record is not
		// visible as its own live sibling.
		if err := s.Closing.ClosePreviousByParent(ctx, tx, parentID, family, psu); err != nil {
			return err
		}
		return tx.Authorisations().Create(ctx, auth)
	})
	if err != nil {
		return domain.Authorisation{}, err
	}

	slogx.FromContext(ctx).Info("authorisation started",
		"authorisation_id", auth.ID,
		"parent_id", parentID,
		"parent_type", string(family),
		"sca_approach", string(auth.ScaApproach),
	)
	return auth, nil
}

// Get returns an authorisation by id, enforcing its deadlines first. A
// lapsed record is failed as a side effect of being observed and the
// matching expiry error is returned instead of stale data.
func (s *AuthorisationService) Get(ctx context.Context, id string) (domain.Authorisation, error) {
	auth, err := s.Store.Authorisations().GetByID(ctx, id)
	if err != nil {
		return domain.Authorisation{}, err
	}
	if err := enforceDeadlines(ctx, s.Store, &auth); err != nil {
		return domain.Authorisation{}, err
	}
	return auth, nil
}

// List returns every authorisation ever created for a parent, terminal
// ones included.
func (s *AuthorisationService) List(ctx context.Context, family domain.AuthorisationType, parentID string) ([]domain.Authorisation, error) {
	return s.Resolvers.ForType(family).AuthorisationsByParent(ctx, parentID)
}

// RedirectURL builds the signed link the TPP forwards the PSU to. Only
// meaningful for redirect authorisations.
func (s *AuthorisationService) RedirectURL(a domain.Authorisation) (string, error) {
	return s.Redirect.BuildRedirectURL(a)
}

// enforceDeadlines applies the lazy deadline checks shared by every
// read path. Deadlines only bind attempts that could still advance;
// terminal records are echoed as-is however long ago their windows
// lapsed. Redirect expiry wins over general expiry when both passed.
// The failure write is best-effort; the expiry error is returned either
// way.
func enforceDeadlines(ctx context.Context, st store.Store, auth *domain.Authorisation) error {
	if auth.ScaStatus.IsTerminal() {
		return nil
	}
	now := time.Now()

	var expiredErr error
	switch {
	case auth.IsRedirectExpired(now):
		expiredErr = ErrRedirectURLExpired
	case auth.IsExpired(now):
		expiredErr = ErrAuthorisationExpired
	default:
		return nil
	}

	auth.ScaStatus = domain.ScaStatusFailed
	if _, err := st.Authorisations().Update(ctx, *auth); err != nil {
		slogx.FromContext(ctx).Error("failing expired authorisation",
			"authorisation_id", auth.ID, "error", err)
	}
	return expiredErr
}
