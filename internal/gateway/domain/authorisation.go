package domain

import "time"

// ScaStatus is the lifecycle status of an SCA authorisation.
// Received is the initial status; Finalised and Failed are terminal.
type ScaStatus string

const (
	ScaStatusReceived          ScaStatus = "received"
	ScaStatusPsuIdentified     ScaStatus = "psuIdentified"
	ScaStatusPsuAuthenticated  ScaStatus = "psuAuthenticated"
	ScaStatusScaMethodSelected ScaStatus = "scaMethodSelected"
	ScaStatusFinalised         ScaStatus = "finalised"
	ScaStatusFailed            ScaStatus = "failed"
)

// AllScaStatuses lists every status the dispatcher must cover.
var AllScaStatuses = []ScaStatus{
	ScaStatusReceived,
	ScaStatusPsuIdentified,
	ScaStatusPsuAuthenticated,
	ScaStatusScaMethodSelected,
	ScaStatusFinalised,
	ScaStatusFailed,
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s ScaStatus) IsTerminal() bool {
	return s == ScaStatusFinalised || s == ScaStatusFailed
}

// ScaApproach is the SCA delivery mechanism. The only permitted runtime
// switch is Embedded to Decoupled, and it is one-way.
type ScaApproach string

const (
	ScaApproachEmbedded  ScaApproach = "EMBEDDED"
	ScaApproachDecoupled ScaApproach = "DECOUPLED"
	ScaApproachRedirect  ScaApproach = "REDIRECT"
)

// AuthorisationType identifies the kind of parent resource an
// authorisation belongs to.
type AuthorisationType string

const (
	AuthorisationAisConsent      AuthorisationType = "AIS_CONSENT"
	AuthorisationPisCreation     AuthorisationType = "PIS_CREATION"
	AuthorisationPisCancellation AuthorisationType = "PIS_CANCELLATION"
)

// AllAuthorisationTypes lists every parent family.
var AllAuthorisationTypes = []AuthorisationType{
	AuthorisationAisConsent,
	AuthorisationPisCreation,
	AuthorisationPisCancellation,
}

// ScaMethod is one authentication method offered by the ASPSP for a PSU.
type ScaMethod struct {
	ID          string `json:"authenticationMethodId"`
	Type        string `json:"authenticationType"` // e.g. SMS_OTP, CHIP_OTP, PUSH_OTP
	Name        string `json:"name,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Decoupled   bool   `json:"decoupled,omitempty"`
}

// ChallengeData carries whatever the PSU needs to produce the OTP for the
// chosen method (embedded approach only).
type ChallengeData struct {
	Data                  []string `json:"data,omitempty"`
	ImageLink             string   `json:"imageLink,omitempty"`
	OtpMaxLength          int      `json:"otpMaxLength,omitempty"`
	OtpFormat             string   `json:"otpFormat,omitempty"`
	AdditionalInformation string   `json:"additionalInformation,omitempty"`
}

// Authorisation is one PSU's SCA attempt against a parent resource
// (consent, payment or payment cancellation). Records are never deleted;
// superseded or expired attempts are moved to the failed status instead.
type Authorisation struct {
	ID         string
	ParentID   string
	ParentType AuthorisationType

	Psu PsuData // set once identification succeeds, immutable afterwards

	ScaStatus      ScaStatus
	ScaApproach    ScaApproach
	ChosenMethodID string

	// AvailableMethods is the snapshot saved at the step where more than
	// one method was offered, so a later selection can be validated
	// against exactly what the PSU saw.
	AvailableMethods []ScaMethod

	// RedirectExpiresAt is set only for the redirect approach.
	RedirectExpiresAt *time.Time
	ExpiresAt         time.Time

	// Version backs the optimistic concurrency check on every update.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRedirectExpired reports whether the redirect link deadline has passed.
func (a *Authorisation) IsRedirectExpired(now time.Time) bool {
	return a.RedirectExpiresAt != nil && now.After(*a.RedirectExpiresAt)
}

// IsExpired reports whether the authorisation deadline has passed.
func (a *Authorisation) IsExpired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}
