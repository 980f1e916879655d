package http

import (
	"net/http"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/service"
	"github.com/psd2hub/obgate/pkg/httpx"
)

// ConsentsHandler serves the thin consent resource the AIS
// authorisation flows run against.
type ConsentsHandler struct {
	Consents *service.ConsentService
}

type createConsentRequest struct {
	RequestType        string   `json:"requestType"`
	RecurringIndicator bool     `json:"recurringIndicator,omitempty"`
	ValidUntil         string   `json:"validUntil,omitempty"` // YYYY-MM-DD
	MultilevelSca      bool     `json:"multilevelSca,omitempty"`
	PsuIDs             []string `json:"psuIds,omitempty"`
}

func (h *ConsentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body createConsentRequest
	if err := httpx.ReadJSON(r, &body); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorBody(service.CodeFormatError, "invalid JSON body"))
		return
	}

	var validUntil time.Time
	if body.ValidUntil != "" {
		parsed, err := time.Parse("2006-01-02", body.ValidUntil)
		if err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, errorBody(service.CodeFormatError, "validUntil must be YYYY-MM-DD"))
			return
		}
		// The consent stays usable through the named day.
		validUntil = parsed.Add(24*time.Hour - time.Nanosecond)
	}

	psus := psuListFromIDs(body.PsuIDs)
	if len(psus) == 0 {
		if psu := psuFromHeaders(r); !psu.IsEmpty() {
			psus = []domain.PsuData{psu}
		}
	}

	c, err := h.Consents.Create(r.Context(), service.CreateConsentInput{
		TppID:         r.Header.Get(headerTppID),
		RequestType:   domain.AisRequestType(body.RequestType),
		OneAccessType: !body.RecurringIndicator,
		MultilevelSca: body.MultilevelSca,
		Psus:          psus,
		ValidUntil:    validUntil,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"consentId":     c.ID,
		"consentStatus": string(c.Status),
	})
}

func (h *ConsentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.Consents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"consentId":     c.ID,
		"consentStatus": string(c.Status),
	})
}

// PaymentsHandler serves the thin payment resource the PIS flows run
// against.
type PaymentsHandler struct {
	Payments *service.PaymentService
}

type createPaymentRequest struct {
	Product       string              `json:"product,omitempty"`
	MultilevelSca bool                `json:"multilevelSca,omitempty"`
	PsuIDs        []string            `json:"psuIds,omitempty"`
	Legs          []paymentLegRequest `json:"legs"`
}

type paymentLegRequest struct {
	EndToEndID   string `json:"endToEndId,omitempty"`
	DebtorIban   string `json:"debtorIban,omitempty"`
	CreditorIban string `json:"creditorIban"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency,omitempty"`
}

func (h *PaymentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body createPaymentRequest
	if err := httpx.ReadJSON(r, &body); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorBody(service.CodeFormatError, "invalid JSON body"))
		return
	}

	legs := make([]domain.PaymentLeg, 0, len(body.Legs))
	for _, l := range body.Legs {
		legs = append(legs, domain.PaymentLeg{
			EndToEndID:   l.EndToEndID,
			DebtorIban:   l.DebtorIban,
			CreditorIban: l.CreditorIban,
			Amount:       l.Amount,
			Currency:     l.Currency,
		})
	}

	psus := psuListFromIDs(body.PsuIDs)
	if len(psus) == 0 {
		if psu := psuFromHeaders(r); !psu.IsEmpty() {
			psus = []domain.PsuData{psu}
		}
	}

	p, err := h.Payments.Create(r.Context(), service.CreatePaymentInput{
		TppID:         r.Header.Get(headerTppID),
		Product:       body.Product,
		MultilevelSca: body.MultilevelSca,
		Psus:          psus,
		Legs:          legs,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"paymentId":         p.ID,
		"transactionStatus": string(p.TransactionStatus),
	})
}

func (h *PaymentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"paymentId":         p.ID,
		"transactionStatus": string(p.TransactionStatus),
	})
}

func psuListFromIDs(ids []string) []domain.PsuData {
	psus := make([]domain.PsuData, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			psus = append(psus, domain.PsuData{ID: id})
		}
	}
	return psus
}
