package service

import (
	"context"
	"testing"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/stretchr/testify/require"
)

func TestStartClosesPreviousLiveAuthorisation(t *testing.T) {
	env := newTestEnv(t, Profile{}, nil)
	c := env.seedConsent(nil)

	first := env.start(domain.AuthorisationAisConsent, c.ID, "psu-1")
	second := env.start(domain.AuthorisationAisConsent, c.ID, "psu-1")

	require.Equal(t, domain.ScaStatusFailed, env.authByID(first.ID).ScaStatus)
	require.Equal(t, domain.ScaStatusReceived, env.authByID(second.ID).ScaStatus)
}

func TestStartLeavesTheNewAuthorisationAlive(t *testing.T) {
	env := newTestEnv(t, Profile{}, nil)
	c := env.seedConsent(nil)

	// With no sibling to supersede, the close must not touch the record
	// being created.
	auth := env.start(domain.AuthorisationAisConsent, c.ID, "psu-1")
	require.Equal(t, domain.ScaStatusReceived, env.authByID(auth.ID).ScaStatus)

	res := env.update(UpdateRequest{
		AuthorisationID: auth.ID,
		ParentID:        c.ID,
		TppID:           "tpp-1",
		Psu:             domain.PsuData{ID: "psu-1"},
		Password:        "secret",
	})
	require.Nil(t, res.Err)
	require.Equal(t, domain.ScaStatusScaMethodSelected, res.ScaStatus)
}

func TestStartKeepsOtherPsusAuthorisationsAlive(t *testing.T) {
	env := newTestEnv(t, Profile{}, nil)
	p := env.seedPayment(func(p *domain.Payment) {
		p.MultilevelSca = true
		p.Psus = []domain.PsuData{{ID: "psu-1"}, {ID: "psu-2"}}
	})

	first := env.start(domain.AuthorisationPisCreation, p.ID, "psu-1")
	second := env.start(domain.AuthorisationPisCreation, p.ID, "psu-2")

	require.Equal(t, domain.ScaStatusReceived, env.authByID(first.ID).ScaStatus)
	require.Equal(t, domain.ScaStatusReceived, env.authByID(second.ID).ScaStatus)
}

func TestStartWithoutPsuClosesNothing(t *testing.T) {
	env := newTestEnv(t, Profile{}, nil)
	c := env.seedConsent(nil)

	first := env.start(domain.AuthorisationAisConsent, c.ID, "psu-1")
	env.start(domain.AuthorisationAisConsent, c.ID, "")

	require.Equal(t, domain.ScaStatusReceived, env.authByID(first.ID).ScaStatus)
}

func TestFinalisationClosesStaleSiblings(t *testing.T) {
	env := newTestEnv(t, Profile{}, nil)
	c := env.seedConsent(nil)

	// Two live attempts by the same PSU exist only when the second was
	// started anonymously and identified later.
	stale := env.start(domain.AuthorisationAisConsent, c.ID, "psu-1")
	current := env.start(domain.AuthorisationAisConsent, c.ID, "")

	res := env.update(UpdateRequest{
		AuthorisationID: current.ID,
		ParentID:        c.ID,
		TppID:           "tpp-1",
		Psu:             domain.PsuData{ID: "psu-1"},
		Password:        "secret",
	})
	require.Nil(t, res.Err)
	require.Equal(t, domain.ScaStatusScaMethodSelected, res.ScaStatus)

	require.Equal(t, domain.ScaStatusFailed, env.authByID(stale.ID).ScaStatus)
	require.Equal(t, domain.ScaStatusScaMethodSelected, env.authByID(current.ID).ScaStatus)
}

func TestListReturnsTerminalAuthorisations(t *testing.T) {
	env := newTestEnv(t, Profile{}, nil)
	c := env.seedConsent(nil)

	env.start(domain.AuthorisationAisConsent, c.ID, "psu-1")
	env.start(domain.AuthorisationAisConsent, c.ID, "psu-1")

	auths, err := env.auths.List(context.Background(), domain.AuthorisationAisConsent, c.ID)
	require.NoError(t, err)
	require.Len(t, auths, 2)
}
