package service

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
)

// finaliseAuthorisation moves one authorisation to finalised and applies
// the matching parent transition in the same transaction. For multilevel
// SCA the parent only becomes fully authorised once every PSU on its
// list holds a finalised authorisation; until then it is marked
// partially authorised. The sibling count happens inside the
// transaction, after this authorisation's own update, so two PSUs
// finalising back to back cannot both miss each other and leave the
// parent stuck in the partial state.
func finaliseAuthorisation(ctx context.Context, st store.Store, resolver ParentResolver, closing *ClosingService, auth domain.Authorisation, parent domain.Authorisable) (domain.Authorisation, error) {
	auth.ScaStatus = domain.ScaStatusFinalised

	var updated domain.Authorisation
	err := st.WithTx(ctx, func(tx store.Tx) error {
		var err error
		updated, err = tx.Authorisations().Update(ctx, auth)
		if err != nil {
			return err
		}

		allSigned := true
		if parent.MultilevelScaRequired() {
			signed := make(map[string]bool)
			siblings, err := tx.Authorisations().ListByParent(ctx, auth.ParentID, auth.ParentType)
			if err != nil {
				return err
			}
			for _, s := range siblings {
				if s.ScaStatus == domain.ScaStatusFinalised && !s.Psu.IsEmpty() {
					signed[s.Psu.ID] = true
				}
			}
			for _, p := range parent.PsuList() {
				if !p.IsEmpty() && !signed[p.ID] {
					allSigned = false
					break
				}
			}
		}

		if allSigned {
			parent = resolver.MarkAuthorised(parent)
			if err := resolver.PersistParent(ctx, tx, parent); err != nil {
				return err
			}
			if err := resolver.OnParentAuthorised(ctx, tx, parent); err != nil {
				return err
			}
		} else {
			parent = resolver.MarkPartiallyAuthorised(parent)
			if err := resolver.PersistParent(ctx, tx, parent); err != nil {
				return err
			}
		}

		return closing.ClosePreviousByAuthorisation(ctx, tx, updated, updated.Psu)
	})
	if err != nil {
		return domain.Authorisation{}, err
	}
	return updated, nil
}
