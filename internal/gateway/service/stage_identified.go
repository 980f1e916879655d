package service

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

// psuIdentifiedStage handles records whose PSU identity was attached
// without authentication. The step a PSU takes from here is exactly the
// authentication step taken from received, so it delegates.
type psuIdentifiedStage struct {
	received *receivedStage
}

func (h *psuIdentifiedStage) Apply(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error) {
	return h.received.Apply(ctx, auth, req)
}
