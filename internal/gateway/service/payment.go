package service

import (
	"context"
	"fmt"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/idx"
)

// PaymentService creates and reads payment aggregates. Thin glue like
// ConsentService; payment product semantics are out of scope.
type PaymentService struct {
	Store  store.Store
	Expiry *ConfirmationExpirationService
}

// CreatePaymentInput carries the aggregate plus its legs. A single
// transfer is an aggregate with one leg.
type CreatePaymentInput struct {
	TppID         string
	Product       string
	MultilevelSca bool
	Psus          []domain.PsuData
	Legs          []domain.PaymentLeg
}

func (s *PaymentService) Create(ctx context.Context, in CreatePaymentInput) (domain.Payment, error) {
	if in.TppID == "" {
		return domain.Payment{}, fmt.Errorf("%w: tpp id missing", ErrInvalidRequest)
	}
	if len(in.Legs) == 0 {
		return domain.Payment{}, fmt.Errorf("%w: payment needs at least one leg", ErrInvalidRequest)
	}
	for i := range in.Legs {
		if in.Legs[i].CreditorIban == "" || in.Legs[i].Amount == "" {
			return domain.Payment{}, fmt.Errorf("%w: leg %d missing creditor or amount", ErrInvalidRequest, i)
		}
		if in.Legs[i].ID == "" {
			in.Legs[i].ID = idx.New().String()
		}
	}

	now := time.Now().UTC()
	p := domain.Payment{
		ID:                idx.New().String(),
		TppID:             in.TppID,
		Product:           in.Product,
		TransactionStatus: domain.TransactionReceived,
		MultilevelSca:     in.MultilevelSca,
		Psus:              in.Psus,
		Legs:              in.Legs,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Store.Payments().Create(ctx, p); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

// Get loads a payment, applying the lazy confirmation expiration check.
func (s *PaymentService) Get(ctx context.Context, id string) (domain.Payment, error) {
	p, err := s.Store.Payments().GetByID(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	updated, err := s.Expiry.CheckAndUpdatePayment(ctx, &p)
	if err != nil {
		return domain.Payment{}, err
	}
	return *updated, nil
}
