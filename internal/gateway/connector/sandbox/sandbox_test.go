package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/connector"
	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testTotpSecret = "JBSWY3DPEHPK3PXP"

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	sb := New()
	methods := []domain.ScaMethod{
		{ID: "totp", Type: "PHOTO_OTP", Name: "Authenticator app"},
		{ID: "push", Type: "PUSH_OTP", Decoupled: true},
	}
	require.NoError(t, sb.AddPsu("psu-1", "correct horse", testTotpSecret, methods))
	return sb
}

func psuCtx(id string) connector.Context {
	return connector.Context{RequestID: "req-1", TppID: "tpp-1", Psu: domain.PsuData{ID: id}}
}

func TestSandboxAuthorisePsu(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()

	t.Run("correct password succeeds", func(t *testing.T) {
		status, err := sb.AuthorisePsu(ctx, psuCtx("psu-1"), "correct horse", connector.Payload{})
		require.NoError(t, err)
		require.Equal(t, connector.AuthSuccess, status)
	})

	t.Run("wrong password fails without error", func(t *testing.T) {
		status, err := sb.AuthorisePsu(ctx, psuCtx("psu-1"), "battery staple", connector.Payload{})
		require.NoError(t, err)
		require.Equal(t, connector.AuthFailure, status)
	})

	t.Run("unknown psu fails without error", func(t *testing.T) {
		status, err := sb.AuthorisePsu(ctx, psuCtx("nobody"), "correct horse", connector.Payload{})
		require.NoError(t, err)
		require.Equal(t, connector.AuthFailure, status)
	})
}

func TestSandboxScaMethods(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()

	methods, err := sb.RequestAvailableScaMethods(ctx, psuCtx("psu-1"), connector.Payload{})
	require.NoError(t, err)
	require.Len(t, methods, 2)

	_, err = sb.RequestAvailableScaMethods(ctx, psuCtx("nobody"), connector.Payload{})
	require.ErrorIs(t, err, ErrUnknownPsu)
}

func TestSandboxChallenge(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()

	t.Run("known method yields a challenge", func(t *testing.T) {
		challenge, method, err := sb.RequestAuthorisationCode(ctx, psuCtx("psu-1"), "totp", connector.Payload{})
		require.NoError(t, err)
		require.NotNil(t, challenge)
		require.NotNil(t, method)
		require.Equal(t, "totp", method.ID)
	})

	t.Run("unknown method errors", func(t *testing.T) {
		_, _, err := sb.RequestAuthorisationCode(ctx, psuCtx("psu-1"), "carrier-pigeon", connector.Payload{})
		require.Error(t, err)
	})
}

func TestSandboxVerification(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()

	t.Run("current totp code verifies", func(t *testing.T) {
		code, err := totp.GenerateCode(testTotpSecret, time.Now())
		require.NoError(t, err)

		result, err := sb.VerifyScaAuthorisation(ctx, psuCtx("psu-1"), "totp", code, connector.Payload{})
		require.NoError(t, err)
		require.Equal(t, connector.VerificationSuccess, result)
	})

	t.Run("wrong code fails", func(t *testing.T) {
		result, err := sb.VerifyScaAuthorisation(ctx, psuCtx("psu-1"), "totp", "000000", connector.Payload{})
		require.NoError(t, err)
		require.Equal(t, connector.VerificationFailed, result)
	})
}

func TestSandboxDecoupled(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()

	msg, err := sb.StartScaDecoupled(ctx, psuCtx("psu-1"), "push", connector.Payload{})
	require.NoError(t, err)
	require.NotEmpty(t, msg)

	t.Run("pending until auto-confirm is enabled", func(t *testing.T) {
		status, err := sb.CheckDecoupledConfirmation(ctx, psuCtx("psu-1"), connector.Payload{})
		require.NoError(t, err)
		require.Equal(t, connector.DecoupledPending, status)

		sb.AutoConfirmDecoupled = true
		status, err = sb.CheckDecoupledConfirmation(ctx, psuCtx("psu-1"), connector.Payload{})
		require.NoError(t, err)
		require.Equal(t, connector.DecoupledConfirmed, status)
	})
}
