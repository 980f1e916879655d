package service

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

// finalisedStage makes updates against a completed authorisation
// idempotent no-ops: nothing is written, no connector is called, the
// terminal status is simply echoed back.
type finalisedStage struct{}

func (h *finalisedStage) Apply(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error) {
	return UpdateResult{ScaStatus: domain.ScaStatusFinalised, ScaApproach: auth.ScaApproach}, nil
}

// failedStage rejects any further steps on a failed authorisation. The
// TPP must start a fresh one.
type failedStage struct{}

func (h *failedStage) Apply(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error) {
	return UpdateResult{
		ScaStatus:   domain.ScaStatusFailed,
		ScaApproach: auth.ScaApproach,
		Err:         statusInvalid("authorisation already failed"),
	}, nil
}
