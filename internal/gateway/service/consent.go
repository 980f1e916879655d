package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/idx"
)

// ErrInvalidRequest reports a malformed resource creation request.
var ErrInvalidRequest = errors.New("invalid request")

// ConsentService creates and reads AIS consents. It is thin glue around
// the store so the authorisation flows have a parent to run against;
// consent content negotiation is out of scope.
type ConsentService struct {
	Store  store.Store
	Expiry *ConfirmationExpirationService
}

// CreateConsentInput is the TPP's consent request, already reduced to
// the fields the state machine cares about.
type CreateConsentInput struct {
	TppID         string
	RequestType   domain.AisRequestType
	OneAccessType bool
	MultilevelSca bool
	Psus          []domain.PsuData
	ValidUntil    time.Time
}

func (s *ConsentService) Create(ctx context.Context, in CreateConsentInput) (domain.Consent, error) {
	switch in.RequestType {
	case domain.AisAllAvailableAccounts, domain.AisGlobalConsent,
		domain.AisDedicatedAccounts, domain.AisBankOffered:
	default:
		return domain.Consent{}, fmt.Errorf("%w: unknown consent request type %q", ErrInvalidRequest, in.RequestType)
	}
	if in.TppID == "" {
		return domain.Consent{}, fmt.Errorf("%w: tpp id missing", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	c := domain.Consent{
		ID:            idx.New().String(),
		TppID:         in.TppID,
		Status:        domain.ConsentReceived,
		RequestType:   in.RequestType,
		OneAccessType: in.OneAccessType,
		MultilevelSca: in.MultilevelSca,
		Psus:          in.Psus,
		ValidUntil:    in.ValidUntil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.Consents().Create(ctx, c); err != nil {
		return domain.Consent{}, err
	}
	return c, nil
}

// Get loads a consent, applying the lazy confirmation expiration check
// so a lapsed consent is observed as expired, never as stale.
func (s *ConsentService) Get(ctx context.Context, id string) (domain.Consent, error) {
	c, err := s.Store.Consents().GetByID(ctx, id)
	if err != nil {
		return domain.Consent{}, err
	}
	updated, err := s.Expiry.CheckAndUpdateConsent(ctx, &c)
	if err != nil {
		return domain.Consent{}, err
	}
	return *updated, nil
}
