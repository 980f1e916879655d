package service

import (
	"context"
	"errors"

	"github.com/psd2hub/obgate/internal/gateway/connector"
	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// stageDeps is the collaborator set every stage handler works with,
// bound to one authorisation family through its resolver.
type stageDeps struct {
	store    store.Store
	conn     connector.Connector
	resolver ParentResolver
	closing  *ClosingService
	selector *ApproachSelector
	profile  Profile
}

// persistStep writes the authorisation mutation and, when requested, the
// parent mutation in one transaction. closeSiblings additionally fails
// the PSU's other live attempts on the same parent.
func (d *stageDeps) persistStep(ctx context.Context, auth domain.Authorisation, parent domain.Authorisable, persistParent, closeSiblings bool) (domain.Authorisation, error) {
	var updated domain.Authorisation
	err := d.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		updated, err = tx.Authorisations().Update(ctx, auth)
		if err != nil {
			return err
		}
		if persistParent && parent != nil {
			if err := d.resolver.PersistParent(ctx, tx, parent); err != nil {
				return err
			}
		}
		if closeSiblings {
			return d.closing.ClosePreviousByAuthorisation(ctx, tx, updated, updated.Psu)
		}
		return nil
	})
	if err != nil {
		return domain.Authorisation{}, err
	}
	return updated, nil
}

// loadParent wraps the family eligibility check into a result-shaped
// outcome. A missing or no-longer-authorisable parent reads the same.
func (d *stageDeps) loadParent(ctx context.Context, auth domain.Authorisation) (domain.Authorisable, *UpdateResult, error) {
	parent, err := d.resolver.NotYetFinalisedParent(ctx, auth.ParentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &UpdateResult{
				ScaStatus: auth.ScaStatus,
				Err:       resourceUnknown("resource no longer accepts authorisations"),
			}, nil
		}
		return nil, nil, err
	}
	return parent, nil, nil
}

// startChosenMethod runs the continuation for a chosen SCA method: the
// decoupled approach triggers the out-of-band confirmation, embedded
// asks the bank for a challenge. Both land in scaMethodSelected.
func (d *stageDeps) startChosenMethod(ctx context.Context, auth domain.Authorisation, req UpdateRequest, payload connector.Payload, method domain.ScaMethod) (UpdateResult, error) {
	prev := auth.ScaStatus
	cctx := connectorContext(req, auth.Psu)
	auth.ChosenMethodID = method.ID

	if d.selector.SwitchToDecoupled(&auth, method) {
		msg, err := d.conn.StartScaDecoupled(ctx, cctx, method.ID, payload)
		if err != nil {
			slogx.FromContext(ctx).Error("connector decoupled start",
				"authorisation_id", auth.ID, "method_id", method.ID, "error", err)
			return UpdateResult{ScaStatus: prev, Err: serviceError()}, nil
		}
		auth.ScaStatus = domain.ScaStatusScaMethodSelected
		updated, err := d.persistStep(ctx, auth, nil, false, true)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{
			ScaStatus:    updated.ScaStatus,
			ScaApproach:  updated.ScaApproach,
			ChosenMethod: &method,
			PsuMessage:   msg,
		}, nil
	}

	challenge, selected, err := d.conn.RequestAuthorisationCode(ctx, cctx, method.ID, payload)
	if err != nil {
		slogx.FromContext(ctx).Error("connector challenge request",
			"authorisation_id", auth.ID, "method_id", method.ID, "error", err)
		return UpdateResult{ScaStatus: prev, Err: serviceError()}, nil
	}
	if selected != nil {
		method = *selected
	}
	auth.ScaStatus = domain.ScaStatusScaMethodSelected
	updated, err := d.persistStep(ctx, auth, nil, false, true)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{
		ScaStatus:     updated.ScaStatus,
		ScaApproach:   updated.ScaApproach,
		ChosenMethod:  &method,
		ChallengeData: challenge,
	}, nil
}

// receivedStage authenticates the PSU and routes the authorisation by
// how many SCA methods the bank offers.
type receivedStage struct {
	deps *stageDeps
}

func (h *receivedStage) Apply(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error) {
	d := h.deps

	psu := req.Psu
	if psu.IsEmpty() {
		psu = auth.Psu
	}
	if psu.IsEmpty() {
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: formatError("psu identification missing")}, nil
	}

	parent, violation, err := d.loadParent(ctx, auth)
	if err != nil {
		return UpdateResult{}, err
	}
	if violation != nil {
		return *violation, nil
	}

	payload := payloadFor(auth.ParentType, parent)
	cctx := connectorContext(req, psu)

	status, err := d.conn.AuthorisePsu(ctx, cctx, req.Password, payload)
	if err != nil {
		slogx.FromContext(ctx).Error("connector psu authorisation",
			"authorisation_id", auth.ID, "error", err)
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: serviceError()}, nil
	}
	if status != connector.AuthSuccess {
		auth.ScaStatus = domain.ScaStatusFailed
		updated, err := d.persistStep(ctx, auth, nil, false, false)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{ScaStatus: updated.ScaStatus, Err: credentialsInvalid()}, nil
	}

	// Identity sticks to the record from the first successful
	// authentication onwards.
	auth.Psu = psu

	if d.resolver.OneFactorEligible(parent) {
		updated, err := finaliseAuthorisation(ctx, d.store, d.resolver, d.closing, auth, parent)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{ScaStatus: updated.ScaStatus, ScaApproach: updated.ScaApproach}, nil
	}

	methods, err := d.conn.RequestAvailableScaMethods(ctx, cctx, payload)
	if err != nil {
		slogx.FromContext(ctx).Error("connector sca method listing",
			"authorisation_id", auth.ID, "error", err)
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: serviceError()}, nil
	}

	switch len(methods) {
	case 0:
		// A PSU the bank offers no methods to cannot complete SCA at
		// all, so the whole parent is rejected, not just this attempt.
		auth.ScaStatus = domain.ScaStatusFailed
		parent = d.resolver.MarkRejected(parent)
		updated, err := d.persistStep(ctx, auth, parent, true, false)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{ScaStatus: updated.ScaStatus, Err: scaMethodUnknown("no sca methods available")}, nil

	case 1:
		return d.startChosenMethod(ctx, auth, req, payload, methods[0])

	default:
		auth.AvailableMethods = methods
		auth.ScaStatus = domain.ScaStatusPsuAuthenticated
		updated, err := d.persistStep(ctx, auth, nil, false, true)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{
			ScaStatus:        updated.ScaStatus,
			ScaApproach:      updated.ScaApproach,
			AvailableMethods: methods,
		}, nil
	}
}
