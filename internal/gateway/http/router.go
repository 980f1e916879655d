package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/service"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/httpx"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	ConsentService       *service.ConsentService
	PaymentService       *service.PaymentService
	AuthorisationService *service.AuthorisationService
	Dispatcher           *service.Dispatcher
	RedirectService      *service.RedirectService
}

func NewRouter(st store.Store, logger *slog.Logger, buildVersion string) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerConsents()
	r.registerPayments()
	r.registerRedirect()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerConsents() {
	consents := &ConsentsHandler{Consents: r.ConsentService}

	r.Mux.Handle("POST /v1/consents",
		httpx.Chain(http.HandlerFunc(consents.HandleCreate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/consents/{id}",
		httpx.Chain(http.HandlerFunc(consents.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.registerAuthorisations("/v1/consents/{id}/authorisations", domain.AuthorisationAisConsent)
}

func (r *Router) registerPayments() {
	payments := &PaymentsHandler{Payments: r.PaymentService}

	r.Mux.Handle("POST /v1/payments",
		httpx.Chain(http.HandlerFunc(payments.HandleCreate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/payments/{id}",
		httpx.Chain(http.HandlerFunc(payments.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.registerAuthorisations("/v1/payments/{id}/authorisations", domain.AuthorisationPisCreation)
	r.registerAuthorisations("/v1/payments/{id}/cancellation-authorisations", domain.AuthorisationPisCancellation)
}

// registerAuthorisations wires the authorisation sub-resource for one
// family under the given path prefix.
func (r *Router) registerAuthorisations(prefix string, family domain.AuthorisationType) {
	h := &AuthorisationsHandler{
		Family:     family,
		Auth:       r.AuthorisationService,
		Dispatcher: r.Dispatcher,
	}

	r.Mux.Handle("POST "+prefix,
		httpx.Chain(http.HandlerFunc(h.HandleStart),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET "+prefix,
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET "+prefix+"/{authorisationId}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// PUT carries PSU credentials and OTP attempts; brute force
	// prevention keys on IP + PSU-ID.
	r.Mux.Handle("PUT "+prefix+"/{authorisationId}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			httpx.RateLimitByIPAndHeader(httpx.StrictLimit, headerPsuID),
		),
	)
}

func (r *Router) registerRedirect() {
	h := &RedirectHandler{Redirect: r.RedirectService}

	r.Mux.Handle("GET /v1/sca-redirect/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
