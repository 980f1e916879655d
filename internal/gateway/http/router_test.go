package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/connector/sandbox"
	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/service"
	"github.com/psd2hub/obgate/internal/gateway/store/drivers/sqlite"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	testPsuPassword = "correct horse"
	testTotpSecret  = "JBSWY3DPEHPK3PXP"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sb := sandbox.New()
	require.NoError(t, sb.AddPsu("psu-1", testPsuPassword, testTotpSecret, []domain.ScaMethod{
		{ID: "totp", Type: "PHOTO_OTP", Name: "Authenticator app"},
	}))

	profile := service.Profile{ScaApproach: domain.ScaApproachEmbedded}
	expiry := &service.ConfirmationExpirationService{Store: st}
	resolvers := service.NewResolverSet(st, expiry, profile)
	closing := &service.ClosingService{Resolvers: resolvers}
	selector := &service.ApproachSelector{Profile: profile}
	redirect := &service.RedirectService{
		Store:      st,
		Resolvers:  resolvers,
		Closing:    closing,
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		BaseURL:    "http://localhost:8080",
	}

	router := NewRouter(st, slog.Default(), "test")
	router.ConsentService = &service.ConsentService{Store: st, Expiry: expiry}
	router.PaymentService = &service.PaymentService{Store: st, Expiry: expiry}
	router.AuthorisationService = &service.AuthorisationService{
		Store:     st,
		Resolvers: resolvers,
		Closing:   closing,
		Selector:  selector,
		Redirect:  redirect,
		Profile:   profile,
	}
	router.Dispatcher = service.NewDispatcher(st, sb, resolvers, closing, selector, profile)
	router.RedirectService = redirect
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// call sends a JSON request with the standard TPP and PSU headers and
// decodes the JSON response.
func call(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, srv.URL+path, payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-TPP-ID", "tpp-1")
	req.Header.Set("PSU-ID", "psu-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestConsentAuthorisationOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	code, body := call(t, srv, http.MethodPost, "/v1/consents", map[string]any{
		"requestType": "dedicatedAccounts",
	})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "received", body["consentStatus"])
	consentID := body["consentId"].(string)

	code, body = call(t, srv, http.MethodPost, "/v1/consents/"+consentID+"/authorisations", nil)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "received", body["scaStatus"])
	authID := body["authorisationId"].(string)

	t.Run("authentication step", func(t *testing.T) {
		code, body := call(t, srv, http.MethodPut,
			"/v1/consents/"+consentID+"/authorisations/"+authID,
			map[string]any{"psuData": map[string]string{"password": testPsuPassword}},
		)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "scaMethodSelected", body["scaStatus"])
		require.NotNil(t, body["challengeData"])
	})

	t.Run("otp step finalises", func(t *testing.T) {
		otpCode, err := totp.GenerateCode(testTotpSecret, time.Now())
		require.NoError(t, err)

		code, body := call(t, srv, http.MethodPut,
			"/v1/consents/"+consentID+"/authorisations/"+authID,
			map[string]any{"scaAuthenticationData": otpCode},
		)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "finalised", body["scaStatus"])
	})

	t.Run("consent became valid", func(t *testing.T) {
		code, body := call(t, srv, http.MethodGet, "/v1/consents/"+consentID, nil)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "valid", body["consentStatus"])
	})

	t.Run("authorisation listing", func(t *testing.T) {
		code, body := call(t, srv, http.MethodGet, "/v1/consents/"+consentID+"/authorisations", nil)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, body["authorisationIds"], 1)
	})
}

func TestPaymentAuthorisationOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	code, body := call(t, srv, http.MethodPost, "/v1/payments", map[string]any{
		"product": "sepa-credit-transfers",
		"legs": []map[string]string{{
			"creditorIban": "DE02120300000000202051",
			"amount":       "42.00",
			"currency":     "EUR",
		}},
	})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "RCVD", body["transactionStatus"])
	paymentID := body["paymentId"].(string)

	code, body = call(t, srv, http.MethodPost, "/v1/payments/"+paymentID+"/authorisations", nil)
	require.Equal(t, http.StatusCreated, code)
	authID := body["authorisationId"].(string)

	code, _ = call(t, srv, http.MethodPut,
		"/v1/payments/"+paymentID+"/authorisations/"+authID,
		map[string]any{"psuData": map[string]string{"password": testPsuPassword}},
	)
	require.Equal(t, http.StatusOK, code)

	otpCode, err := totp.GenerateCode(testTotpSecret, time.Now())
	require.NoError(t, err)
	code, body = call(t, srv, http.MethodPut,
		"/v1/payments/"+paymentID+"/authorisations/"+authID,
		map[string]any{"scaAuthenticationData": otpCode},
	)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "finalised", body["scaStatus"])

	code, body = call(t, srv, http.MethodGet, "/v1/payments/"+paymentID, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ACCP", body["transactionStatus"])
}

func TestHTTPErrorShapes(t *testing.T) {
	srv := newTestServer(t)

	t.Run("unknown consent is 404", func(t *testing.T) {
		code, body := call(t, srv, http.MethodGet, "/v1/consents/nope", nil)
		require.Equal(t, http.StatusNotFound, code)
		require.NotEmpty(t, body["tppMessages"])
	})

	t.Run("invalid consent request is 400", func(t *testing.T) {
		code, _ := call(t, srv, http.MethodPost, "/v1/consents", map[string]any{
			"requestType": "somethingElse",
		})
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("wrong password yields structured violation", func(t *testing.T) {
		code, body := call(t, srv, http.MethodPost, "/v1/consents", map[string]any{
			"requestType": "dedicatedAccounts",
		})
		require.Equal(t, http.StatusCreated, code)
		consentID := body["consentId"].(string)

		code, body = call(t, srv, http.MethodPost, "/v1/consents/"+consentID+"/authorisations", nil)
		require.Equal(t, http.StatusCreated, code)
		authID := body["authorisationId"].(string)

		code, body = call(t, srv, http.MethodPut,
			"/v1/consents/"+consentID+"/authorisations/"+authID,
			map[string]any{"psuData": map[string]string{"password": "wrong"}},
		)
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "failed", body["scaStatus"])
	})
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, body := call(t, srv, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])

	code, body = call(t, srv, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
}
