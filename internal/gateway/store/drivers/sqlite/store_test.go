package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func sampleAuthorisation(parentID string) domain.Authorisation {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Authorisation{
		ID:          idx.New().String(),
		ParentID:    parentID,
		ParentType:  domain.AuthorisationAisConsent,
		Psu:         domain.PsuData{ID: "psu-1", IDType: "email"},
		ScaStatus:   domain.ScaStatusReceived,
		ScaApproach: domain.ScaApproachEmbedded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestAuthorisationsRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	redirect := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second)
	a := sampleAuthorisation("consent-1")
	a.ScaApproach = domain.ScaApproachRedirect
	a.RedirectExpiresAt = &redirect
	a.ExpiresAt = time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	a.AvailableMethods = []domain.ScaMethod{
		{ID: "sms-otp", Type: "SMS_OTP", Name: "SMS code"},
		{ID: "push", Type: "PUSH_OTP", Decoupled: true},
	}
	require.NoError(t, st.Authorisations().Create(ctx, a))

	got, err := st.Authorisations().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ParentID, got.ParentID)
	require.Equal(t, a.Psu, got.Psu)
	require.Equal(t, a.AvailableMethods, got.AvailableMethods)
	require.NotNil(t, got.RedirectExpiresAt)
	require.True(t, got.RedirectExpiresAt.Equal(redirect))
	require.True(t, got.ExpiresAt.Equal(a.ExpiresAt))
	require.EqualValues(t, 0, got.Version)

	t.Run("missing id maps to ErrNotFound", func(t *testing.T) {
		_, err := st.Authorisations().GetByID(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestAuthorisationsOptimisticLocking(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := sampleAuthorisation("consent-1")
	require.NoError(t, st.Authorisations().Create(ctx, a))

	a.ScaStatus = domain.ScaStatusPsuIdentified
	updated, err := st.Authorisations().Update(ctx, a)
	require.NoError(t, err)
	require.EqualValues(t, 1, updated.Version)

	t.Run("stale version loses the race", func(t *testing.T) {
		stale := a // still carries version 0
		stale.ScaStatus = domain.ScaStatusFailed
		_, err := st.Authorisations().Update(ctx, stale)
		require.ErrorIs(t, err, store.ErrConflict)

		got, err := st.Authorisations().GetByID(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ScaStatusPsuIdentified, got.ScaStatus)
	})

	t.Run("updating a deleted record maps to ErrNotFound", func(t *testing.T) {
		ghost := sampleAuthorisation("consent-1")
		_, err := st.Authorisations().Update(ctx, ghost)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestAuthorisationsListByParent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := sampleAuthorisation("consent-1")
	second := sampleAuthorisation("consent-1")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	other := sampleAuthorisation("consent-1")
	other.ParentType = domain.AuthorisationPisCreation

	for _, a := range []domain.Authorisation{second, first, other} {
		require.NoError(t, st.Authorisations().Create(ctx, a))
	}

	got, err := st.Authorisations().ListByParent(ctx, "consent-1", domain.AuthorisationAisConsent)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, first.ID, got[0].ID)
	require.Equal(t, second.ID, got[1].ID)
}

func TestFailExpired(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	lapsed := sampleAuthorisation("consent-1")
	lapsed.ExpiresAt = now.Add(-2 * time.Hour)

	finalised := sampleAuthorisation("consent-1")
	finalised.ScaStatus = domain.ScaStatusFinalised
	finalised.ExpiresAt = now.Add(-2 * time.Hour)

	fresh := sampleAuthorisation("consent-1")
	fresh.ExpiresAt = now.Add(time.Hour)

	// No deadline at all: housekeeping must leave it alone.
	unbounded := sampleAuthorisation("consent-1")

	for _, a := range []domain.Authorisation{lapsed, finalised, fresh, unbounded} {
		require.NoError(t, st.Authorisations().Create(ctx, a))
	}

	n, err := st.Authorisations().FailExpired(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	for id, want := range map[string]domain.ScaStatus{
		lapsed.ID:    domain.ScaStatusFailed,
		finalised.ID: domain.ScaStatusFinalised,
		fresh.ID:     domain.ScaStatusReceived,
		unbounded.ID: domain.ScaStatusReceived,
	} {
		got, err := st.Authorisations().GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, got.ScaStatus, "authorisation %s", id)
	}
}

func TestConsentsRoundtripAndTermination(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	mkConsent := func(psuID string, oneAccess bool) domain.Consent {
		return domain.Consent{
			ID:            idx.New().String(),
			TppID:         "tpp-1",
			Status:        domain.ConsentValid,
			RequestType:   domain.AisDedicatedAccounts,
			OneAccessType: oneAccess,
			Psus:          []domain.PsuData{{ID: psuID}},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	oldRecurring := mkConsent("psu-1", false)
	oldOneOff := mkConsent("psu-1", true)
	otherPsu := mkConsent("psu-2", false)
	current := mkConsent("psu-1", false)

	for _, c := range []domain.Consent{oldRecurring, oldOneOff, otherPsu, current} {
		require.NoError(t, st.Consents().Create(ctx, c))
	}

	t.Run("roundtrip preserves flags and psus", func(t *testing.T) {
		got, err := st.Consents().GetByID(ctx, oldOneOff.ID)
		require.NoError(t, err)
		require.True(t, got.OneAccessType)
		require.Equal(t, []domain.PsuData{{ID: "psu-1"}}, got.Psus)
	})

	t.Run("terminates only older recurring consents of the same psu", func(t *testing.T) {
		n, err := st.Consents().TerminateOldConsents(ctx, current)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		got, err := st.Consents().GetByID(ctx, oldRecurring.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ConsentTerminatedByAspsp, got.Status)

		for _, id := range []string{oldOneOff.ID, otherPsu.ID, current.ID} {
			got, err := st.Consents().GetByID(ctx, id)
			require.NoError(t, err)
			require.Equal(t, domain.ConsentValid, got.Status)
		}
	})
}

func TestPaymentsRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	p := domain.Payment{
		ID:                idx.New().String(),
		TppID:             "tpp-1",
		Product:           "sepa-credit-transfers",
		TransactionStatus: domain.TransactionReceived,
		MultilevelSca:     true,
		Psus:              []domain.PsuData{{ID: "psu-1"}, {ID: "psu-2"}},
		Legs: []domain.PaymentLeg{
			{ID: "leg-1", DebtorIban: "DE40100100100000012345", CreditorIban: "DE02120300000000202051", Amount: "10.00", Currency: "EUR"},
			{ID: "leg-2", DebtorIban: "DE40100100100000012345", CreditorIban: "DE75512108001245126199", Amount: "5.50", Currency: "EUR"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Payments().Create(ctx, p))

	got, err := st.Payments().GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Legs, got.Legs)
	require.Equal(t, p.Psus, got.Psus)
	require.True(t, got.MultilevelSca)

	t.Run("update changes status but not legs", func(t *testing.T) {
		got.TransactionStatus = domain.TransactionAccepted
		require.NoError(t, st.Payments().Update(ctx, got))

		after, err := st.Payments().GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, domain.TransactionAccepted, after.TransactionStatus)
		require.Equal(t, p.Legs, after.Legs)
	})
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := sampleAuthorisation("consent-1")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Authorisations().Create(ctx, a); err != nil {
			return err
		}
		return store.ErrConflict // force rollback
	})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = st.Authorisations().GetByID(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
