package service

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

// methodSelectionStage lets an authenticated PSU pick one of the SCA
// methods snapshotted when more than one was offered. Selection is
// validated against that snapshot, never against a fresh bank listing,
// so the PSU can only choose something they were actually shown.
type methodSelectionStage struct {
	deps *stageDeps
}

func (h *methodSelectionStage) Apply(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error) {
	d := h.deps

	if req.AuthenticationMethodID == "" {
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: formatError("authentication method id missing")}, nil
	}

	var chosen *domain.ScaMethod
	for i := range auth.AvailableMethods {
		if auth.AvailableMethods[i].ID == req.AuthenticationMethodID {
			chosen = &auth.AvailableMethods[i]
			break
		}
	}
	if chosen == nil {
		// Unknown selection is recoverable; the PSU may pick again.
		return UpdateResult{
			ScaStatus:        auth.ScaStatus,
			AvailableMethods: auth.AvailableMethods,
			Err:              scaMethodUnknown("method was not offered for this authorisation"),
		}, nil
	}

	parent, violation, err := d.loadParent(ctx, auth)
	if err != nil {
		return UpdateResult{}, err
	}
	if violation != nil {
		return *violation, nil
	}

	return d.startChosenMethod(ctx, auth, req, payloadFor(auth.ParentType, parent), *chosen)
}
