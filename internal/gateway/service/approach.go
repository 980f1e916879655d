package service

import "github.com/psd2hub/obgate/internal/gateway/domain"

// ApproachSelector decides the SCA approach for an authorisation. The
// initial approach comes from the ASPSP profile; the only permitted
// runtime change is embedded to decoupled, driven by the chosen method.
type ApproachSelector struct {
	Profile Profile
}

// Initial returns the approach new authorisations start with.
func (s *ApproachSelector) Initial() domain.ScaApproach {
	if s.Profile.ScaApproach == "" {
		return domain.ScaApproachEmbedded
	}
	return s.Profile.ScaApproach
}

// SwitchToDecoupled flips an embedded authorisation to decoupled when a
// decoupled method was chosen, and reports whether the authorisation is
// decoupled after the call. The switch is one-way; no combination ever
// moves an authorisation back to embedded.
func (s *ApproachSelector) SwitchToDecoupled(a *domain.Authorisation, method domain.ScaMethod) bool {
	if !method.Decoupled {
		return false
	}
	if a.ScaApproach != domain.ScaApproachEmbedded {
		return a.ScaApproach == domain.ScaApproachDecoupled
	}
	a.ScaApproach = domain.ScaApproachDecoupled
	return true
}
