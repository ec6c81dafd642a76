package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/custodia/internal/cache"
	httpx "github.com/dropDatabas3/custodia/internal/http"
	"github.com/dropDatabas3/custodia/internal/http/services"
	"github.com/dropDatabas3/custodia/internal/notify"
	"github.com/dropDatabas3/custodia/internal/signer"
	"github.com/dropDatabas3/custodia/internal/vault"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	sgn, err := signer.New(signer.Options{})
	require.NoError(t, err)

	vlt, err := vault.New(vault.Options{Root: t.TempDir()})
	require.NoError(t, err)

	svc := &services.Certificates{
		Signer:     sgn,
		Vault:      vlt,
		Cache:      cache.NewMemory("test", 0),
		CacheTTL:   time.Minute,
		Notifier:   notify.New(nil, ""),
		Issuer:     "custodia-test",
		ChainID:    "test-chain",
		ReceiptTTL: time.Hour,
	}

	router := httpx.NewRouter(httpx.RouterConfig{
		Certificates: &CertificatesHandler{Svc: svc},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestMintVerifyHistory_EndToEnd(t *testing.T) {
	srv := newTestServer(t)

	// Mint
	resp := postJSON(t, srv.URL+"/v1/certificates", map[string]any{
		"worker_id": "w1",
		"payload": map[string]any{
			"dals_serial": "E2E-1",
			"owner":       "Alice",
			"asset_title": "Memorias 1998",
		},
		"broadcast": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mint := decode[services.MintResponse](t, resp)

	require.Equal(t, "E2E-1", mint.Serial)
	require.Len(t, mint.Signature.PayloadHash, 64)
	require.Len(t, mint.Signature.Signature, 64)
	require.True(t, mint.Anchor.Simulated, "el anchor debe declararse simulado")
	require.Equal(t, 100, mint.Integrity.Score)
	require.NotEmpty(t, mint.BroadcastID)
	require.Contains(t, mint.VerificationURL, "/E2E-1")
	require.True(t, strings.HasPrefix(mint.VaultTxID, "VLT-E2E-1-"))

	// Verify: firma correcta
	resp = postJSON(t, srv.URL+"/v1/certificates/verify", map[string]any{
		"payload": map[string]any{
			"dals_serial": "E2E-1",
			"owner":       "Alice",
			"asset_title": "Memorias 1998",
		},
		"signature": mint.Signature.Signature,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decode[struct {
		Valid bool `json:"valid"`
	}](t, resp).Valid)

	// Verify: firma incorrecta ⇒ false válido, no error
	resp = postJSON(t, srv.URL+"/v1/certificates/verify", map[string]any{
		"payload":   map[string]any{"dals_serial": "E2E-1"},
		"signature": strings.Repeat("00", 32),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, decode[struct {
		Valid bool `json:"valid"`
	}](t, resp).Valid)

	// Receipt token
	resp = postJSON(t, srv.URL+"/v1/certificates/verify", map[string]any{
		"dals_serial":   "E2E-1",
		"receipt_token": mint.ReceiptToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decode[struct {
		Valid bool `json:"valid"`
	}](t, resp).Valid)

	// History: 1 evento minted + broadcast confirmado
	httpResp, err := http.Get(srv.URL + "/v1/certificates/E2E-1/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	hist := decode[vault.History](t, httpResp)
	require.Equal(t, vault.StatusBroadcastConfirmed, hist.Status)
	require.Len(t, hist.Events, 1)
	require.Equal(t, vault.EventCertificateMinted, hist.Events[0].EventType)
	require.Equal(t, "E2E-1", hist.Summary.Serial)
}

func TestSummary_CachedRead(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/certificates", map[string]any{
		"worker_id": "w1",
		"payload":   map[string]any{"dals_serial": "C-1", "owner": "Bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Dos lecturas: la segunda sale del cache, misma respuesta
	for i := 0; i < 2; i++ {
		r, err := http.Get(srv.URL + "/v1/certificates/C-1")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, r.StatusCode)
		sum := decode[vault.CertificateSummary](t, r)
		require.Equal(t, "C-1", sum.Serial)
		require.Equal(t, "Bob", sum.Payload["owner"])
	}
}

func TestHistory_UnknownSerialIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/certificates/nope/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	hist := decode[vault.History](t, resp)
	require.Equal(t, vault.StatusNotFound, hist.Status)
}

func TestMint_MissingSerialRejected(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/certificates", map[string]any{
		"worker_id": "w1",
		"payload":   map[string]any{"owner": "Alice"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStats_Endpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/certificates", map[string]any{
		"worker_id": "w1",
		"payload":   map[string]any{"dals_serial": "S-1"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	r, err := http.Get(srv.URL + "/v1/vault/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, r.StatusCode)
	st := decode[services.StatsResponse](t, r)
	require.Equal(t, 1, st.Vault.TotalCertificates)
	require.Equal(t, 1, st.Vault.TotalEvents)
}

func TestBroadcast_Endpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/certificates", map[string]any{
		"worker_id": "w1",
		"payload":   map[string]any{"dals_serial": "B-1"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/certificates/B-1/broadcast", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]string](t, resp)
	require.NotEmpty(t, out["broadcast_id"])
}
