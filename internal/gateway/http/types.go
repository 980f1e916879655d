package http

import (
	"errors"
	"net/http"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/service"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/httpx"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// PSU identification travels in headers, following the Berlin Group
// conventions; step payloads travel in the JSON body.
const (
	headerPsuID              = "PSU-ID"
	headerPsuIDType          = "PSU-ID-Type"
	headerPsuCorporateID     = "PSU-Corporate-ID"
	headerPsuCorporateIDType = "PSU-Corporate-ID-Type"
	headerTppID              = "X-TPP-ID"
)

func psuFromHeaders(r *http.Request) domain.PsuData {
	return domain.PsuData{
		ID:              r.Header.Get(headerPsuID),
		IDType:          r.Header.Get(headerPsuIDType),
		CorporateID:     r.Header.Get(headerPsuCorporateID),
		CorporateIDType: r.Header.Get(headerPsuCorporateIDType),
	}
}

// tppMessage is the machine-readable message block carried on error
// responses.
type tppMessage struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Text     string `json:"text,omitempty"`
}

func errorBody(code, text string) map[string]any {
	return map[string]any{
		"tppMessages": []tppMessage{{Category: "ERROR", Code: code, Text: text}},
	}
}

// authorisationResponse is the wire shape of an authorisation state.
type authorisationResponse struct {
	AuthorisationID string                `json:"authorisationId,omitempty"`
	ScaStatus       domain.ScaStatus      `json:"scaStatus"`
	ScaApproach     domain.ScaApproach    `json:"scaApproach,omitempty"`
	ScaMethods      []domain.ScaMethod    `json:"scaMethods,omitempty"`
	ChosenScaMethod *domain.ScaMethod     `json:"chosenScaMethod,omitempty"`
	ChallengeData   *domain.ChallengeData `json:"challengeData,omitempty"`
	PsuMessage      string                `json:"psuMessage,omitempty"`
	Links           map[string]string     `json:"_links,omitempty"`
	TppMessages     []tppMessage          `json:"tppMessages,omitempty"`
}

// writeUpdateResult renders a dispatcher outcome. Business violations
// keep their structured code and status; successful steps are 200.
func writeUpdateResult(w http.ResponseWriter, res service.UpdateResult) {
	resp := authorisationResponse{
		ScaStatus:       res.ScaStatus,
		ScaApproach:     res.ScaApproach,
		ScaMethods:      res.AvailableMethods,
		ChosenScaMethod: res.ChosenMethod,
		ChallengeData:   res.ChallengeData,
		PsuMessage:      res.PsuMessage,
	}
	if res.Err != nil {
		resp.TppMessages = []tppMessage{{Category: "ERROR", Code: res.Err.Code, Text: res.Err.Text}}
		httpx.WriteJSON(w, res.Err.HTTPStatus, resp)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// writeServiceError maps service and store errors onto the wire.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, errorBody(service.CodeResourceUnknown, "unknown resource"))
	case errors.Is(err, service.ErrAuthorisationExpired):
		httpx.WriteJSON(w, http.StatusForbidden, errorBody("AUTHORISATION_EXPIRED", "the authorisation deadline has passed"))
	case errors.Is(err, service.ErrRedirectURLExpired):
		httpx.WriteJSON(w, http.StatusForbidden, errorBody("REDIRECT_URL_EXPIRED", "the redirect link has expired"))
	case errors.Is(err, service.ErrInvalidRedirectToken):
		httpx.WriteJSON(w, http.StatusUnauthorized, errorBody(service.CodeFormatError, "invalid redirect token"))
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteJSON(w, http.StatusBadRequest, errorBody(service.CodeFormatError, err.Error()))
	default:
		log.Error("request failed", "path", r.URL.Path, "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorBody(service.CodeServiceError, ""))
	}
}
