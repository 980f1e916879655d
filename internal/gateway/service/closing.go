package service

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// ClosingService keeps at most one live authorisation per (parent, PSU)
// pair. Superseded attempts are moved to failed, never deleted, so the
// audit trail stays complete. All writes go through the store handed in
// by the caller, which is the caller's transaction when one is open.
type ClosingService struct {
	Resolvers *ResolverSet
}

// ClosePreviousByParent fails every non-terminal authorisation of the
// given PSU on the parent. Used when a fresh authorisation is created.
// A PSU without identification closes nothing. Idempotent.
func (s *ClosingService) ClosePreviousByParent(ctx context.Context, st store.Store, parentID string, parentType domain.AuthorisationType, psu domain.PsuData) error {
	return s.close(ctx, st, parentID, parentType, psu, "")
}

// ClosePreviousByAuthorisation fails the current authorisation's live
// siblings for the same PSU, excluding the current one by id only. The
// exclusion is never widened to "same PSU", so a stale attempt by the
// same customer still gets closed.
func (s *ClosingService) ClosePreviousByAuthorisation(ctx context.Context, st store.Store, current domain.Authorisation, psu domain.PsuData) error {
	return s.close(ctx, st, current.ParentID, current.ParentType, psu, current.ID)
}

func (s *ClosingService) close(ctx context.Context, st store.Store, parentID string, parentType domain.AuthorisationType, psu domain.PsuData, excludeID string) error {
	if psu.IsEmpty() {
		return nil
	}
	// ForType panics on an unknown family; resolving up front keeps that
	// contract even though the listing itself goes through st.
	s.Resolvers.ForType(parentType)

	auths, err := st.Authorisations().ListByParent(ctx, parentID, parentType)
	if err != nil {
		return err
	}

	log := slogx.FromContext(ctx)
	for _, a := range auths {
		if a.ID == excludeID || a.ScaStatus.IsTerminal() || !a.Psu.Matches(psu) {
			continue
		}
		a.ScaStatus = domain.ScaStatusFailed
		if _, err := st.Authorisations().Update(ctx, a); err != nil {
			return err
		}
		log.Info("closed superseded authorisation",
			"authorisation_id", a.ID,
			"parent_id", parentID,
			"parent_type", string(parentType),
		)
	}
	return nil
}
