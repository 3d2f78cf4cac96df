package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritrail/internal/audit"
	"veritrail/internal/ingest"
	"veritrail/internal/ledger"
	"veritrail/internal/principal"
	"veritrail/internal/record"
	"veritrail/internal/trail"
	httptransport "veritrail/internal/transport/http"
	"veritrail/pkg/testutil"
)

type noopAuthorizer struct{}

func (noopAuthorizer) EnqueueAuthorize(int64, string) {}

type noopSubmitter struct{}

func (noopSubmitter) Submit(*record.Record, string) {}

type noopResubmitter struct{}

func (noopResubmitter) Resubmit(context.Context, string, int64, string) error { return nil }

type staticContent struct{}

func (staticContent) Put(context.Context, []byte, string) (string, error) {
	return "QmRouterTest", nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	records := record.NewMemoryStore()
	principals := principal.NewMemoryStore()
	audits := audit.NewMemoryStore()
	inbox := make(chan audit.Event, 64)
	auditor := audit.NewPublisher(audits, inbox, log)

	principalService := principal.NewService(principals, noopAuthorizer{}, auditor, nil, log)
	ingestService := ingest.NewService(records, staticContent{}, noopSubmitter{}, auditor, log)
	trailService := trail.NewService(records, principals, ledger.NewMemoryLedger(), auditor, log)

	health := httptransport.NewHealthHandler(map[string]httptransport.HealthChecker{
		"postgres": httptransport.HealthCheckFunc(func(context.Context) error { return nil }),
		"redis":    nil,
		"ledger": httptransport.HealthCheckFunc(func(context.Context) error {
			return errors.New("connection refused")
		}),
	})

	return httptransport.NewRouter(httptransport.RouterConfig{
		Logger:        log,
		Authenticator: principalService,
		Principals:    principal.NewHandler(principalService, log),
		Health:        health,
		Ingest:        ingest.NewHandler(ingestService, noopResubmitter{}, log),
		Trail:         trail.NewHandler(trailService, log),
	})
}

func registerPrincipal(t *testing.T, router http.Handler) (apiKey, address string) {
	t.Helper()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/principals", map[string]string{
		"company_name":   "Acme Ltd",
		"ledger_address": "0xAbCd00000000000000000000000000000000EF12",
		"email":          "ops@acme.example",
	})
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	type registered struct {
		APIKey        string `json:"api_key"`
		LedgerAddress string `json:"ledger_address"`
	}
	resp := testutil.UnmarshalResponse[registered](t, rr)
	require.NotEmpty(t, resp.APIKey)
	return resp.APIKey, resp.LedgerAddress
}

func uploadRequest(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("transaction_type", "INVOICE"))
	require.NoError(t, mw.WriteField("amount", "125.50"))
	require.NoError(t, mw.WriteField("currency", "USD"))
	part, err := mw.CreateFormFile("file", "invoice.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRouterRegistrationAndAuthenticatedUpload(t *testing.T) {
	router := newTestRouter(t)
	apiKey, address := registerPrincipal(t, router)

	body, contentType := uploadRequest(t)
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", apiKey)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		TokenID string `json:"token_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.TokenID, "_INVOICE_")
	assert.Equal(t, "pending", resp.Status)

	// trail route accepts the same key
	trailReq := httptest.NewRequest(http.MethodGet, "/api/audit-trail/"+address, nil)
	trailReq.Header.Set("Authorization", "Bearer "+apiKey)
	trailRR := httptest.NewRecorder()
	router.ServeHTTP(trailRR, trailReq)
	assert.Equal(t, http.StatusOK, trailRR.Code, trailRR.Body.String())
}

func TestRouterRejectsMissingAndBadKeys(t *testing.T) {
	router := newTestRouter(t)
	registerPrincipal(t, router)

	body, contentType := uploadRequest(t)
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/audit-trail/0x0000000000000000000000000000000000000001", nil)
	req.Header.Set("X-API-Key", "ak_not_a_real_key")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthReportsComponentStates(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
	require.Equal(t, http.StatusOK, rr.Code)

	type healthBody struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	resp := testutil.UnmarshalResponse[healthBody](t, rr)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Components["postgres"])
	assert.Equal(t, "disabled", resp.Components["redis"])
	assert.Contains(t, resp.Components["ledger"], "unavailable")
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
