package http

import (
	"net/http"

	"github.com/psd2hub/obgate/internal/gateway/service"
	"github.com/psd2hub/obgate/pkg/httpx"
)

// RedirectHandler completes redirect authorisations when the PSU comes
// back from the bank's authentication pages.
type RedirectHandler struct {
	Redirect *service.RedirectService
}

// HandleCallback handles GET /v1/sca-redirect/{token}. The bank's pages
// append outcome=failure when authentication did not succeed; any other
// outcome counts as success.
func (h *RedirectHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	success := r.URL.Query().Get("outcome") != "failure"

	auth, err := h.Redirect.Complete(r.Context(), r.PathValue("token"), success)
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
