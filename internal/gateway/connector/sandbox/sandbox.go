// Package sandbox is a reference Connector implementation backed by
// in-memory PSU fixtures. It lets the gateway run end to end without a
// real ASPSP adapter: passwords are argon2id hashes, embedded OTPs are
// TOTP codes over a per-PSU secret.
package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/psd2hub/obgate/internal/gateway/connector"
	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/pkg/cryptox"
	"github.com/pquerna/otp/totp"
)

// ErrUnknownPsu reports a PSU id with no fixture behind it.
var ErrUnknownPsu = errors.New("sandbox: unknown psu")

type psu struct {
	passwordHash string
	totpSecret   string
	methods      []domain.ScaMethod
}

// Sandbox holds fixture PSUs. The fixtures are configuration, not per-call
// state; each SPI call receives everything else it needs explicitly.
type Sandbox struct {
	psus map[string]psu

	// AutoConfirmDecoupled makes decoupled confirmations succeed on the
	// first poll instead of staying pending.
	AutoConfirmDecoupled bool
}

func New() *Sandbox {
	return &Sandbox{psus: make(map[string]psu)}
}

// AddPsu registers a fixture PSU. The password is stored as an argon2id
// hash; the TOTP secret drives embedded OTP verification.
func (s *Sandbox) AddPsu(id, password, totpSecret string, methods []domain.ScaMethod) error {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("sandbox: hashing fixture password: %w", err)
	}
	s.psus[id] = psu{passwordHash: hash, totpSecret: totpSecret, methods: methods}
	return nil
}

func (s *Sandbox) AuthorisePsu(ctx context.Context, c connector.Context, password string, p connector.Payload) (connector.AuthStatus, error) {
	fixture, ok := s.psus[c.Psu.ID]
	if !ok {
		return connector.AuthFailure, nil
	}
	if cryptox.VerifyPassword(password, fixture.passwordHash) != nil {
		return connector.AuthFailure, nil
	}
	return connector.AuthSuccess, nil
}

func (s *Sandbox) RequestAvailableScaMethods(ctx context.Context, c connector.Context, p connector.Payload) ([]domain.ScaMethod, error) {
	fixture, ok := s.psus[c.Psu.ID]
	if !ok {
		return nil, ErrUnknownPsu
	}
	return fixture.methods, nil
}

func (s *Sandbox) RequestAuthorisationCode(ctx context.Context, c connector.Context, methodID string, p connector.Payload) (*domain.ChallengeData, *domain.ScaMethod, error) {
	fixture, ok := s.psus[c.Psu.ID]
	if !ok {
		return nil, nil, ErrUnknownPsu
	}

	for _, m := range fixture.methods {
		if m.ID == methodID {
			challenge := &domain.ChallengeData{
				OtpMaxLength:          6,
				OtpFormat:             "integer",
				AdditionalInformation: "Enter the code from your authenticator app",
			}
			return challenge, &m, nil
		}
	}
	return nil, nil, fmt.Errorf("sandbox: psu %q has no method %q", c.Psu.ID, methodID)
}

func (s *Sandbox) VerifyScaAuthorisation(ctx context.Context, c connector.Context, methodID, authenticationData string, p connector.Payload) (connector.VerificationResult, error) {
	fixture, ok := s.psus[c.Psu.ID]
	if !ok {
		return connector.VerificationFailed, ErrUnknownPsu
	}
	if !totp.Validate(authenticationData, fixture.totpSecret) {
		return connector.VerificationFailed, nil
	}
	return connector.VerificationSuccess, nil
}

func (s *Sandbox) StartScaDecoupled(ctx context.Context, c connector.Context, methodID string, p connector.Payload) (string, error) {
	if _, ok := s.psus[c.Psu.ID]; !ok {
		return "", ErrUnknownPsu
	}
	return "Please confirm the operation in your banking app", nil
}

func (s *Sandbox) CheckDecoupledConfirmation(ctx context.Context, c connector.Context, p connector.Payload) (connector.DecoupledStatus, error) {
	if _, ok := s.psus[c.Psu.ID]; !ok {
		return connector.DecoupledFailed, ErrUnknownPsu
	}
	if s.AutoConfirmDecoupled {
		return connector.DecoupledConfirmed, nil
	}
	return connector.DecoupledPending, nil
}
