package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/psd2hub/obgate/internal/gateway/connector"
	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/idx"
)

// UpdateRequest is one PSU step against an existing authorisation. The
// dispatcher inspects the current SCA status, not the request shape, to
// decide what happens next.
type UpdateRequest struct {
	AuthorisationID string
	ParentID        string
	TppID           string

	// Family is the authorisation family of the route the request came
	// in on. A record reached through the wrong family's route is
	// treated as unknown.
	Family domain.AuthorisationType

	Psu      domain.PsuData
	Password string

	AuthenticationMethodID string
	ScaAuthenticationData  string

	// UpdatePsuIdentification attaches PSU identification without running
	// any authentication step.
	UpdatePsuIdentification bool
}

// UpdateResult is the outcome of a step. Err carries expected business
// violations; the Go error return of UpdateAuthorisation is reserved for
// expiry and infrastructure failures.
type UpdateResult struct {
	ScaStatus   domain.ScaStatus
	ScaApproach domain.ScaApproach

	AvailableMethods []domain.ScaMethod
	ChosenMethod     *domain.ScaMethod
	ChallengeData    *domain.ChallengeData
	PsuMessage       string

	Err *MessageError
}

// StageHandler advances an authorisation that currently sits in one
// particular SCA status. Handlers receive a copy and persist what they
// change themselves.
type StageHandler interface {
	Apply(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error)
}

type stageKey struct {
	family domain.AuthorisationType
	status domain.ScaStatus
}

// Dispatcher routes authorisation updates to the stage handler matching
// the record's (family, status) pair. The handler table is static and
// covers the full cross product; NewDispatcher refuses to construct a
// dispatcher with a hole in it.
type Dispatcher struct {
	Store     store.Store
	Resolvers *ResolverSet

	handlers map[stageKey]StageHandler
}

func NewDispatcher(st store.Store, conn connector.Connector, resolvers *ResolverSet, closing *ClosingService, selector *ApproachSelector, profile Profile) *Dispatcher {
	handlers := make(map[stageKey]StageHandler)
	for _, family := range domain.AllAuthorisationTypes {
		deps := &stageDeps{
			store:    st,
			conn:     conn,
			resolver: resolvers.ForType(family),
			closing:  closing,
			selector: selector,
			profile:  profile,
		}
		received := &receivedStage{deps: deps}
		handlers[stageKey{family, domain.ScaStatusReceived}] = received
		handlers[stageKey{family, domain.ScaStatusPsuIdentified}] = &psuIdentifiedStage{received: received}
		handlers[stageKey{family, domain.ScaStatusPsuAuthenticated}] = &methodSelectionStage{deps: deps}
		handlers[stageKey{family, domain.ScaStatusScaMethodSelected}] = &verificationStage{deps: deps}
		handlers[stageKey{family, domain.ScaStatusFinalised}] = &finalisedStage{}
		handlers[stageKey{family, domain.ScaStatusFailed}] = &failedStage{}
	}

	for _, family := range domain.AllAuthorisationTypes {
		for _, status := range domain.AllScaStatuses {
			if _, ok := handlers[stageKey{family, status}]; !ok {
				panic(fmt.Sprintf("service: no stage handler for (%s, %s)", family, status))
			}
		}
	}

	return &Dispatcher{Store: st, Resolvers: resolvers, handlers: handlers}
}

// UpdateAuthorisation runs one step of the state machine. Expiry is
// checked before anything else, including before any connector call, and
// forces the record to failed as a side effect of being observed.
func (d *Dispatcher) UpdateAuthorisation(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	auth, err := d.Store.Authorisations().GetByID(ctx, req.AuthorisationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UpdateResult{Err: resourceUnknown("unknown authorisation")}, nil
		}
		return UpdateResult{}, err
	}
	if req.Family != "" && req.Family != auth.ParentType {
		return UpdateResult{Err: resourceUnknown("unknown authorisation")}, nil
	}
	if req.ParentID != "" && req.ParentID != auth.ParentID {
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: formatError("authorisation does not belong to this resource")}, nil
	}

	if err := enforceDeadlines(ctx, d.Store, &auth); err != nil {
		return UpdateResult{}, err
	}

	if req.UpdatePsuIdentification {
		return d.updatePsuIdentification(ctx, auth, req)
	}

	handler, ok := d.handlers[stageKey{auth.ParentType, auth.ScaStatus}]
	if !ok {
		return UpdateResult{}, fmt.Errorf("service: no stage handler for (%s, %s)", auth.ParentType, auth.ScaStatus)
	}

	result, err := handler.Apply(ctx, auth, req)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return UpdateResult{ScaStatus: auth.ScaStatus, Err: statusInvalid("authorisation was updated concurrently")}, nil
		}
		return UpdateResult{}, err
	}
	if result.ScaApproach == "" {
		result.ScaApproach = auth.ScaApproach
	}
	return result, nil
}

// updatePsuIdentification attaches (or re-attaches) the PSU identity and
// moves the record to psuIdentified without calling the connector.
func (d *Dispatcher) updatePsuIdentification(ctx context.Context, auth domain.Authorisation, req UpdateRequest) (UpdateResult, error) {
	if req.Psu.IsEmpty() {
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: formatError("psu identification missing")}, nil
	}
	switch auth.ScaStatus {
	case domain.ScaStatusReceived, domain.ScaStatusPsuIdentified:
	default:
		return UpdateResult{ScaStatus: auth.ScaStatus, Err: statusInvalid("identification can only be updated before authentication")}, nil
	}

	auth.Psu = req.Psu
	auth.ScaStatus = domain.ScaStatusPsuIdentified
	updated, err := d.Store.Authorisations().Update(ctx, auth)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{ScaStatus: updated.ScaStatus, ScaApproach: updated.ScaApproach}, nil
}

// connectorContext builds the identity a connector call runs under. A
// fresh request id is minted per call for traceability.
func connectorContext(req UpdateRequest, psu domain.PsuData) connector.Context {
	return connector.Context{
		RequestID: idx.New().String(),
		TppID:     req.TppID,
		Psu:       psu,
	}
}

// payloadFor wraps the parent for the connector SPI.
func payloadFor(family domain.AuthorisationType, parent domain.Authorisable) connector.Payload {
	p := connector.Payload{Family: family}
	switch v := parent.(type) {
	case *domain.Consent:
		p.Consent = v
	case *domain.Payment:
		p.Payment = v
	}
	return p
}
