package service

import (
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

// Profile is the ASPSP-side policy the state machine consults. It is
// plain configuration; predicates derived from it (one-factor
// eligibility in particular) are re-evaluated on every attempt, never
// cached on an authorisation.
type Profile struct {
	// ScaApproach is the approach new authorisations start with.
	ScaApproach domain.ScaApproach

	// OneTimeAvailableAccountsScaRequired forces full SCA even for
	// one-off all-available-accounts consents.
	OneTimeAvailableAccountsScaRequired bool

	// AuthorisationTTL bounds how long an authorisation accepts steps.
	AuthorisationTTL time.Duration

	// RedirectURLTTL bounds how long a redirect link stays usable.
	RedirectURLTTL time.Duration

	// ConfirmationWindow is how long a parent may wait for a finalised
	// authorisation before expiring. Zero disables the window.
	ConfirmationWindow time.Duration
}
