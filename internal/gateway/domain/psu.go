package domain

// PsuData identifies the bank customer performing an authorisation. Any
// subset of the fields may be present; ID is the significant one for
// matching authorisations to each other.
type PsuData struct {
	ID              string `json:"psuId,omitempty"`
	IDType          string `json:"psuIdType,omitempty"`
	CorporateID     string `json:"psuCorporateId,omitempty"`
	CorporateIDType string `json:"psuCorporateIdType,omitempty"`
}

// IsEmpty reports whether no PSU identification is present.
func (p PsuData) IsEmpty() bool {
	return p.ID == ""
}

// Matches reports whether two PSU identities refer to the same customer.
// Matching is by PSU id equality only.
func (p PsuData) Matches(other PsuData) bool {
	return p.ID != "" && p.ID == other.ID
}
