// Package connector defines the SPI the gateway requires from a
// bank-specific adapter. The gateway treats the connector as stateless:
// everything a call needs, including the parent business object, is
// passed explicitly on every invocation.
package connector

import (
	"context"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

// AuthStatus is the outcome of a PSU credential check.
type AuthStatus string

const (
	AuthSuccess AuthStatus = "SUCCESS"
	AuthFailure AuthStatus = "FAILURE"
)

// VerificationResult is the outcome of an SCA code verification.
type VerificationResult string

const (
	// VerificationSuccess completes the SCA step.
	VerificationSuccess VerificationResult = "SUCCESS"
	// VerificationFailed rejects the submitted code; the authorisation
	// status is left unchanged so the PSU may retry.
	VerificationFailed VerificationResult = "FAILED"
	// VerificationAttemptFailed signals the bank exhausted the PSU's
	// attempts; the authorisation must fail.
	VerificationAttemptFailed VerificationResult = "ATTEMPT_FAILED"
)

// DecoupledStatus is the state of an out-of-band confirmation.
type DecoupledStatus string

const (
	DecoupledPending   DecoupledStatus = "PENDING"
	DecoupledConfirmed DecoupledStatus = "CONFIRMED"
	DecoupledFailed    DecoupledStatus = "FAILED"
)

// Context carries the request-scoped identity a connector call runs under.
type Context struct {
	RequestID string
	TppID     string
	Psu       domain.PsuData
}

// Payload is the parent business object being authorised. Exactly one of
// Consent/Payment is set, matching Family.
type Payload struct {
	Family  domain.AuthorisationType
	Consent *domain.Consent
	Payment *domain.Payment
}

// Connector is the bank-facing SPI. Every call may block on network I/O
// and may return a transport or business error; the dispatcher maps those
// into its own error taxonomy without interpreting bank-specific codes.
type Connector interface {
	// AuthorisePsu checks the PSU's credentials against the bank.
	AuthorisePsu(ctx context.Context, c Context, password string, p Payload) (AuthStatus, error)

	// RequestAvailableScaMethods lists the SCA methods the bank offers
	// this PSU. An empty list is a valid answer and means SCA cannot
	// proceed.
	RequestAvailableScaMethods(ctx context.Context, c Context, p Payload) ([]domain.ScaMethod, error)

	// RequestAuthorisationCode asks the bank to issue a challenge for the
	// chosen method (embedded approach).
	RequestAuthorisationCode(ctx context.Context, c Context, methodID string, p Payload) (*domain.ChallengeData, *domain.ScaMethod, error)

	// VerifyScaAuthorisation verifies the PSU-supplied authentication
	// data for the chosen method.
	VerifyScaAuthorisation(ctx context.Context, c Context, methodID, authenticationData string, p Payload) (VerificationResult, error)

	// StartScaDecoupled triggers the out-of-band confirmation on the
	// PSU's device and returns the message to display meanwhile.
	StartScaDecoupled(ctx context.Context, c Context, methodID string, p Payload) (string, error)

	// CheckDecoupledConfirmation polls whether the PSU confirmed
	// out-of-band yet.
	CheckDecoupledConfirmation(ctx context.Context, c Context, p Payload) (DecoupledStatus, error)
}
