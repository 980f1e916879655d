package http

import (
	"net/http"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/service"
	"github.com/psd2hub/obgate/pkg/httpx"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// AuthorisationsHandler serves the authorisation sub-resource of one
// family. The same handler type backs consents, payments and payment
// cancellations; only Family differs.
type AuthorisationsHandler struct {
	Family     domain.AuthorisationType
	Auth       *service.AuthorisationService
	Dispatcher *service.Dispatcher
}

type updateAuthorisationRequest struct {
	PsuData                 *psuAuthenticationBody `json:"psuData,omitempty"`
	AuthenticationMethodID  string                 `json:"authenticationMethodId,omitempty"`
	ScaAuthenticationData   string                 `json:"scaAuthenticationData,omitempty"`
	UpdatePsuIdentification bool                   `json:"updatePsuIdentification,omitempty"`
}

type psuAuthenticationBody struct {
	Password string `json:"password"`
}

// HandleStart handles POST /v1/.../{id}/authorisations.
func (h *AuthorisationsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID := r.PathValue("id")

	auth, err := h.Auth.Start(ctx, h.Family, parentID, psuFromHeaders(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := authorisationResponse{
		AuthorisationID: auth.ID,
		ScaStatus:       auth.ScaStatus,
		ScaApproach:     auth.ScaApproach,
	}
	if auth.ScaApproach == domain.ScaApproachRedirect {
		url, err := h.Auth.RedirectURL(auth)
		if err != nil {
			slogx.FromContext(ctx).Error("building redirect url",
				"authorisation_id", auth.ID, "error", err)
			writeServiceError(w, r, err)
			return
		}
		resp.Links = map[string]string{"scaRedirect": url}
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// HandleUpdate handles PUT /v1/.../{id}/authorisations/{authorisationId}.
// One call is one step of the state machine.
func (h *AuthorisationsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body updateAuthorisationRequest
	if err := httpx.ReadJSON(r, &body); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorBody(service.CodeFormatError, "invalid JSON body"))
		return
	}

	req := service.UpdateRequest{
		AuthorisationID:         r.PathValue("authorisationId"),
		ParentID:                r.PathValue("id"),
		Family:                  h.Family,
		TppID:                   r.Header.Get(headerTppID),
		Psu:                     psuFromHeaders(r),
		AuthenticationMethodID:  body.AuthenticationMethodID,
		ScaAuthenticationData:   body.ScaAuthenticationData,
		UpdatePsuIdentification: body.UpdatePsuIdentification,
	}
	if body.PsuData != nil {
		req.Password = body.PsuData.Password
	}

	res, err := h.Dispatcher.UpdateAuthorisation(ctx, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeUpdateResult(w, res)
}

// HandleGet handles GET /v1/.../{id}/authorisations/{authorisationId}.
func (h *AuthorisationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	auth, err := h.Auth.Get(r.Context(), r.PathValue("authorisationId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authorisationResponse{
		AuthorisationID: auth.ID,
		ScaStatus:       auth.ScaStatus,
		ScaApproach:     auth.ScaApproach,
	})
}

// HandleList handles GET /v1/.../{id}/authorisations.
func (h *AuthorisationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	auths, err := h.Auth.List(r.Context(), h.Family, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	ids := make([]string, 0, len(auths))
	for _, a := range auths {
		ids = append(ids, a.ID)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"authorisationIds": ids})
}
