package service

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/connector"
	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// verificationStage completes SCA for a chosen method. Embedded verifies
// the submitted OTP; decoupled polls the out-of-band confirmation and
// never passes through code verification.
type verificationStage struct {
	deps *stageDeps
}

func (h *verificationStage) Apply(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error) {
	d := h.deps

	parent, violation, err := d.loadParent(ctx, auth)
	if err != nil {
		return UpdateResult{}, err
	}
	if violation != nil {
		return *violation, nil
	}

	payload := payloadFor(auth.ParentType, parent)
	cctx := connectorContext(req, auth.Psu)

	if auth.ScaApproach == domain.ScaApproachDecoupled {
		return h.pollDecoupled(ctx, auth, cctx, payload, parent)
	}

	if req.ScaAuthenticationData == "" {
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: formatError("sca authentication data missing")}, nil
	}

	result, err := d.conn.VerifyScaAuthorisation(ctx, cctx, auth.ChosenMethodID, req.ScaAuthenticationData, payload)
	if err != nil {
		slogx.FromContext(ctx).Error("connector sca verification",
			"authorisation_id", auth.ID, "error", err)
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: serviceError()}, nil
	}

	switch result {
	case connector.VerificationSuccess:
		updated, err := finaliseAuthorisation(ctx, d.store, d.resolver, d.closing, auth, parent)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{ScaStatus: updated.ScaStatus, ScaApproach: updated.ScaApproach}, nil

	case connector.VerificationAttemptFailed:
		auth.ScaStatus = domain.ScaStatusFailed
		updated, err := d.persistStep(ctx, auth, nil, false, false)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{ScaStatus: updated.ScaStatus, Err: credentialsInvalid()}, nil

	default:
		// Plain failure keeps the status, leaving room to retry.
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: credentialsInvalid()}, nil
	}
}

func (h *verificationStage) pollDecoupled(ctx context.Context, auth domain.Authorisation, cctx connector.Context, payload connector.Payload, parent domain.Authorisable) (UpdateResult, error) {
	d := h.deps

	status, err := d.conn.CheckDecoupledConfirmation(ctx, cctx, payload)
	if err != nil {
		slogx.FromContext(ctx).Error("connector decoupled poll",
			"authorisation_id", auth.ID, "error", err)
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: serviceError()}, nil
	}

	switch status {
	case connector.DecoupledConfirmed:
		updated, err := finaliseAuthorisation(ctx, d.store, d.resolver, d.closing, auth, parent)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{ScaStatus: updated.ScaStatus, ScaApproach: updated.ScaApproach}, nil

	case connector.DecoupledPending:
		return UpdateResult{
			ScaStatus:   auth.ScaStatus,
			ScaApproach: auth.ScaApproach,
			PsuMessage:  "Waiting for confirmation in the banking app",
		}, nil

	default:
		auth.ScaStatus = domain.ScaStatusFailed
		updated, err := d.persistStep(ctx, auth, nil, false, false)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{ScaStatus: updated.ScaStatus, Err: credentialsInvalid()}, nil
	}
}
