// Package handlers expone el API HTTP del vault. Thin wrappers: el
// trabajo real vive en internal/http/services.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/custodia/internal/http"
	"github.com/dropDatabas3/custodia/internal/http/services"
	"github.com/dropDatabas3/custodia/internal/signer"
	"github.com/dropDatabas3/custodia/internal/vault"
)

// CertificatesHandler enruta las operaciones de certificados.
type CertificatesHandler struct {
	Svc *services.Certificates
}

func (h *CertificatesHandler) Register(r chi.Router) {
	r.Post("/v1/certificates", h.mint)
	r.Post("/v1/certificates/verify", h.verify)
	r.Get("/v1/certificates/{serial}", h.summary)
	r.Get("/v1/certificates/{serial}/history", h.history)
	r.Post("/v1/certificates/{serial}/broadcast", h.broadcast)
	r.Get("/v1/vault/stats", h.stats)
}

func (h *CertificatesHandler) mint(w http.ResponseWriter, r *http.Request) {
	var req services.MintRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	resp, err := h.Svc.Mint(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

type verifyRequest struct {
	Payload   map[string]any `json:"payload,omitempty"`
	Signature string         `json:"signature,omitempty"`
	// Alternativa: validar un receipt token contra un serial
	Serial       string `json:"dals_serial,omitempty"`
	ReceiptToken string `json:"receipt_token,omitempty"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

func (h *CertificatesHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	switch {
	case req.ReceiptToken != "" && req.Serial != "":
		ok, err := h.Svc.VerifyReceipt(r.Context(), req.Serial, req.ReceiptToken)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, verifyResponse{Valid: ok})

	case req.Payload != nil && req.Signature != "":
		ok, err := h.Svc.Verify(r.Context(), req.Payload, req.Signature)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, verifyResponse{Valid: ok})

	default:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"expected payload+signature or dals_serial+receipt_token")
	}
}

func (h *CertificatesHandler) summary(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	sum, err := h.Svc.Summary(r.Context(), serial)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sum)
}

func (h *CertificatesHandler) history(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	hist, err := h.Svc.History(r.Context(), serial)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if hist.Status == vault.StatusNotFound {
		// not-found es resultado estructurado, no excepción: 404 con body
		httpx.WriteJSON(w, http.StatusNotFound, hist)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, hist)
}

func (h *CertificatesHandler) broadcast(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	id, err := h.Svc.Broadcast(r.Context(), serial)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"broadcast_id": id})
}

func (h *CertificatesHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

// writeServiceError mapea la taxonomía de errores del core a HTTP.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, vault.ErrBadInput), errors.Is(err, signer.ErrBadPayload):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		// StorageError y demás fatales: se propagan como 500, sin retry acá
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
