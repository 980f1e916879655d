package domain

import "time"

// TransactionStatus is the ISO 20022 style status of a payment aggregate.
type TransactionStatus string

const (
	TransactionReceived          TransactionStatus = "RCVD"
	TransactionPartiallyAccepted TransactionStatus = "PATC"
	TransactionAccepted          TransactionStatus = "ACCP"
	TransactionRejected          TransactionStatus = "RJCT"
	TransactionCancelled         TransactionStatus = "CANC"
)

// AcceptsCreationAuthorisation reports whether a creation authorisation
// may still run against the payment. This is an explicit allow-list of
// exactly two statuses, intentionally narrower than "not terminal".
func (s TransactionStatus) AcceptsCreationAuthorisation() bool {
	return s == TransactionReceived || s == TransactionPartiallyAccepted
}

// AcceptsCancellationAuthorisation reports whether the payment can still
// be cancelled.
func (s TransactionStatus) AcceptsCancellationAuthorisation() bool {
	return s != TransactionCancelled && s != TransactionRejected
}

// PaymentLeg is one individual transfer inside a payment aggregate. Legs
// share the aggregate's payment id and are persisted separately.
type PaymentLeg struct {
	ID           string
	EndToEndID   string
	DebtorIban   string
	CreditorIban string
	Amount       string
	Currency     string
}

// Payment is the PIS parent resource, rebuilt from its legs on load.
type Payment struct {
	ID      string
	TppID   string
	Product string

	TransactionStatus TransactionStatus
	MultilevelSca     bool

	Psus []PsuData
	Legs []PaymentLeg

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payment) AuthorisableID() string      { return p.ID }
func (p *Payment) MultilevelScaRequired() bool { return p.MultilevelSca }
func (p *Payment) PsuList() []PsuData          { return p.Psus }
func (p *Payment) sealedAuthorisable()         {}
