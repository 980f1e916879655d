package domain

// Authorisable is the closed set of parent resources an authorisation can
// sign: *Consent and *Payment. The unexported method keeps the set sealed;
// adding a family means adding a variant here and a matching resolver, not
// subclassing.
type Authorisable interface {
	AuthorisableID() string
	MultilevelScaRequired() bool
	PsuList() []PsuData

	sealedAuthorisable()
}
