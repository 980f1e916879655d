package domain

import "time"

// ConsentStatus is the lifecycle status of an AIS consent.
type ConsentStatus string

const (
	ConsentReceived            ConsentStatus = "received"
	ConsentValid               ConsentStatus = "valid"
	ConsentPartiallyAuthorised ConsentStatus = "partiallyAuthorised"
	ConsentRejected            ConsentStatus = "rejected"
	ConsentExpired             ConsentStatus = "expired"
	ConsentRevokedByPsu        ConsentStatus = "revokedByPsu"
	ConsentTerminatedByTpp     ConsentStatus = "terminatedByTpp"
	ConsentTerminatedByAspsp   ConsentStatus = "terminatedByAspsp"
)

// IsFinalised reports whether the consent can no longer accept
// authorisations. Note this is a deny-list: received, valid and
// partiallyAuthorised consents all still accept authorisations
// (multilevel SCA signs against a valid consent too).
func (s ConsentStatus) IsFinalised() bool {
	switch s {
	case ConsentRejected, ConsentExpired, ConsentRevokedByPsu,
		ConsentTerminatedByTpp, ConsentTerminatedByAspsp:
		return true
	}
	return false
}

// AisRequestType describes the account access shape the TPP asked for.
type AisRequestType string

const (
	AisAllAvailableAccounts AisRequestType = "allAvailableAccounts"
	AisGlobalConsent        AisRequestType = "globalConsent"
	AisDedicatedAccounts    AisRequestType = "dedicatedAccounts"
	AisBankOffered          AisRequestType = "bankOffered"
)

// Consent is the AIS parent resource an authorisation signs.
type Consent struct {
	ID          string
	TppID       string
	Status      ConsentStatus
	RequestType AisRequestType

	// OneAccessType marks a one-off (non-recurring) consent.
	OneAccessType bool
	MultilevelSca bool

	// Psus lists every customer who must complete SCA before the consent
	// is fully authorised.
	Psus []PsuData

	ValidUntil time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Consent) AuthorisableID() string      { return c.ID }
func (c *Consent) MultilevelScaRequired() bool { return c.MultilevelSca }
func (c *Consent) PsuList() []PsuData          { return c.Psus }
func (c *Consent) sealedAuthorisable()         {}

// OneFactorEligible reports whether a successful PSU authentication alone
// completes this consent, skipping the SCA method step entirely. The
// profile flag must be passed in fresh on every attempt; the predicate is
// never cached.
func (c *Consent) OneFactorEligible(scaRequiredByProfile bool) bool {
	return c.RequestType == AisAllAvailableAccounts &&
		c.OneAccessType &&
		!scaRequiredByProfile &&
		!c.MultilevelSca
}
