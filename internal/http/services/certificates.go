// Package services contiene la lógica de orquestación entre el signer,
// el vault y los colaboradores opcionales (cache, archive, notify).
// Los handlers HTTP son thin wrappers sobre este paquete.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/custodia/internal/archive"
	"github.com/dropDatabas3/custodia/internal/cache"
	"github.com/dropDatabas3/custodia/internal/metrics"
	"github.com/dropDatabas3/custodia/internal/notify"
	"github.com/dropDatabas3/custodia/internal/observability/logger"
	"github.com/dropDatabas3/custodia/internal/signer"
	"github.com/dropDatabas3/custodia/internal/vault"
)

// Certificates orquesta el ciclo de vida: firmar → registrar → (broadcast)
// → notificar. Dependencias por constructor, nada de singletons.
type Certificates struct {
	Signer     *signer.Signer
	Vault      *vault.Vault
	Cache      cache.Client // opcional
	CacheTTL   time.Duration
	Notifier   *notify.Notifier // opcional
	Archive    archive.Store    // opcional: índice por serial
	Issuer     string
	ChainID    string
	ReceiptTTL time.Duration

	// sf colapsa lecturas concurrentes del mismo summary en un solo
	// acceso a disco mientras se llena el cache.
	sf singleflight.Group
}

// MintRequest es el contrato del caller: payload completo + worker id.
type MintRequest struct {
	WorkerID     string         `json:"worker_id"`
	Payload      map[string]any `json:"payload"`
	ArtifactPath string         `json:"artifact_path,omitempty"`
	Broadcast    bool           `json:"broadcast,omitempty"`
	NotifyEmail  string         `json:"notify_email,omitempty"`
}

// MintResponse es lo que el caller embebe en el artefacto renderizado.
type MintResponse struct {
	Serial          string              `json:"dals_serial"`
	VaultTxID       string              `json:"vault_tx_id"`
	Signature       signer.Bundle       `json:"signature"`
	Anchor          signer.AnchorRecord `json:"anchor"`
	Integrity       signer.Scorecard    `json:"integrity"`
	VerificationURL string              `json:"verification_url"`
	ReceiptToken    string              `json:"receipt_token"`
	BroadcastID     string              `json:"broadcast_id,omitempty"`
}

// Mint firma el payload, registra la emisión en el vault y opcionalmente
// la broadcastea y notifica. El anchor es SIMULADO (ver signer).
func (s *Certificates) Mint(ctx context.Context, req MintRequest) (MintResponse, error) {
	if req.WorkerID == "" {
		return MintResponse{}, fmt.Errorf("%w: worker_id is required", vault.ErrBadInput)
	}

	bundle, err := s.Signer.Sign(req.Payload, s.Issuer)
	if err != nil {
		return MintResponse{}, err
	}
	if bundle.Serial == "" {
		return MintResponse{}, fmt.Errorf("%w: payload has no dals_serial/serial", vault.ErrBadInput)
	}
	serial := bundle.Serial

	txID, err := s.Vault.RecordIssuance(ctx, req.WorkerID, serial, req.ArtifactPath, req.Payload, bundle)
	if err != nil {
		return MintResponse{}, err
	}

	anchor := s.Signer.FabricateAnchor(bundle.PayloadHash, s.ChainID)

	receipt, err := s.Signer.ReceiptToken(serial, bundle.PayloadHash, s.Issuer, s.ReceiptTTL)
	if err != nil {
		return MintResponse{}, err
	}
	verifyURL := s.Vault.VerificationURL(serial) + "?receipt=" + receipt

	resp := MintResponse{
		Serial:          serial,
		VaultTxID:       txID,
		Signature:       bundle,
		Anchor:          anchor,
		Integrity:       signer.IntegrityScore(bundle),
		VerificationURL: verifyURL,
		ReceiptToken:    receipt,
	}

	if req.Broadcast {
		bcID, err := s.Vault.Broadcast(map[string]any{
			"dals_serial":  serial,
			"payload_hash": bundle.PayloadHash,
			"sig_id":       bundle.SigID,
			"worker_id":    req.WorkerID,
		})
		if err != nil {
			return MintResponse{}, err
		}
		resp.BroadcastID = bcID
	}

	// El summary cambió: invalidar la entrada cacheada
	if s.Cache != nil {
		_ = s.Cache.Delete(ctx, cacheKey(serial))
	}

	if s.Notifier.Enabled() && req.NotifyEmail != "" {
		s.Notifier.CertificateIssued(ctx, req.NotifyEmail, serial, s.Vault.VerificationURL(serial))
	}

	return resp, nil
}

// Verify delega en el signer y cuenta el resultado.
// Un mismatch es un false válido, no un error.
func (s *Certificates) Verify(ctx context.Context, payload map[string]any, signature string) (bool, error) {
	ok, err := s.Signer.Verify(payload, signature)
	if err != nil {
		return false, err
	}
	metrics.IncVerification(ok)
	return ok, nil
}

// VerifyReceipt valida un receipt token contra un serial.
func (s *Certificates) VerifyReceipt(ctx context.Context, serial, token string) (bool, error) {
	tokSerial, _, err := s.Signer.VerifyReceipt(token)
	if err != nil {
		// Token malformado/expirado/firmado con otra clave ⇒ no verifica
		return false, nil
	}
	ok := tokSerial == serial
	metrics.IncVerification(ok)
	return ok, nil
}

// Summary lee el summary con cache read-through + singleflight.
// Si el vault local no lo tiene y hay archive, consulta el índice
// (emisiones de otros nodos que comparten la base).
func (s *Certificates) Summary(ctx context.Context, serial string) (vault.CertificateSummary, error) {
	if s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, cacheKey(serial)); err == nil {
			var sum vault.CertificateSummary
			if json.Unmarshal([]byte(raw), &sum) == nil {
				return sum, nil
			}
			// Entrada cacheada ilegible: se descarta y se relee
			_ = s.Cache.Delete(ctx, cacheKey(serial))
		}
	}

	v, err, _ := s.sf.Do(serial, func() (any, error) {
		sum, err := s.Vault.GetSummary(serial)
		if err == nil {
			return sum, nil
		}
		if errors.Is(err, vault.ErrNotFound) && s.Archive != nil {
			indexed, lerr := s.Archive.LookupSerial(ctx, serial)
			if lerr != nil {
				logger.From(ctx).Warn("archive lookup failed", logger.Serial(serial), logger.Err(lerr))
			} else if indexed != nil {
				return *indexed, nil
			}
		}
		return nil, err
	})
	if err != nil {
		return vault.CertificateSummary{}, err
	}
	sum := v.(vault.CertificateSummary)

	if s.Cache != nil {
		if b, err := json.Marshal(sum); err == nil {
			_ = s.Cache.Set(ctx, cacheKey(serial), string(b), s.CacheTTL)
		}
	}
	return sum, nil
}

// History delega en el vault (sin cache: el merge de eventos es barato
// a esta escala y siempre queremos el estado fresco).
func (s *Certificates) History(ctx context.Context, serial string) (vault.History, error) {
	return s.Vault.GetHistory(serial)
}

// Broadcast re-broadcastea un certificado ya emitido.
func (s *Certificates) Broadcast(ctx context.Context, serial string) (string, error) {
	sum, err := s.Summary(ctx, serial)
	if err != nil {
		return "", err
	}
	return s.Vault.Broadcast(map[string]any{
		"dals_serial":  sum.Serial,
		"payload_hash": sum.Signature.PayloadHash,
		"sig_id":       sum.Signature.SigID,
		"worker_id":    sum.WorkerID,
	})
}

// StatsResponse agrega los contadores del vault y del cache.
type StatsResponse struct {
	Vault vault.Stats  `json:"vault"`
	Cache *cache.Stats `json:"cache,omitempty"`
}

func (s *Certificates) Stats(ctx context.Context) (StatsResponse, error) {
	vs, err := s.Vault.Stats()
	if err != nil {
		return StatsResponse{}, err
	}
	out := StatsResponse{Vault: vs}
	if s.Cache != nil {
		if cs, err := s.Cache.Stats(ctx); err == nil {
			out.Cache = &cs
		}
	}
	return out, nil
}

func cacheKey(serial string) string { return "summary:" + serial }
