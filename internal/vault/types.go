package vault

import (
	"github.com/dropDatabas3/custodia/internal/signer"
)

// Tipos de evento del ciclo de vida de un certificado.
const (
	EventCertificateMinted = "CERTIFICATE_MINTED"
)

// Estados que reporta GetHistory.
const (
	StatusNotFound           = "not_found"
	StatusMinted             = "minted"
	StatusBroadcastConfirmed = "broadcast-confirmed"
)

// VaultEvent es una entrada inmutable del log de auditoría de un worker.
// Append-only: nunca se muta ni se borra desde este paquete.
type VaultEvent struct {
	Timestamp    string `json:"timestamp"`
	EventType    string `json:"event_type"`
	Serial       string `json:"dals_serial"`
	WorkerID     string `json:"worker_id"`
	PayloadHash  string `json:"payload_hash"`
	Signature    string `json:"signature"` // truncada, no la firma completa
	ArtifactSize int64  `json:"artifact_size"`
	ArtifactPath string `json:"artifact_path"`
	// Reissued marca que ya existía un summary para el serial al momento
	// de esta emisión (re-mint permitido, last-write-wins).
	Reissued bool `json:"reissued,omitempty"`
}

// CertificateSummary es el último estado conocido de un certificado.
// Un archivo por serial; cada emisión lo sobreescribe completo.
type CertificateSummary struct {
	Serial          string         `json:"dals_serial"`
	WorkerID        string         `json:"worker_id"`
	Payload         map[string]any `json:"payload"`
	Signature       signer.Bundle  `json:"signature"`
	MintedAt        string         `json:"minted_at"`
	VerificationURL string         `json:"verification_url"`
	ArtifactPath    string         `json:"artifact_path,omitempty"`
	// VaultIntegrity es el fingerprint agregado del vault al momento de
	// la emisión. Detección de cambios, no primitiva de seguridad.
	VaultIntegrity string `json:"vault_integrity"`
	Reissued       bool   `json:"reissued,omitempty"`
}

// SwarmBroadcast simula la distribución de un certificado a los
// guardianes réplica. Write-once.
type SwarmBroadcast struct {
	BroadcastID string         `json:"broadcast_id"`
	Timestamp   string         `json:"timestamp"`
	Serial      string         `json:"dals_serial,omitempty"`
	PayloadHash string         `json:"payload_hash,omitempty"`
	Certificate map[string]any `json:"certificate"`
	Guardians   []string       `json:"guardians"`
	Quorum      int            `json:"quorum"`
	Status      string         `json:"status"` // "broadcast"
}

// ConsensusRecord simula el resultado de consenso para un broadcast.
// Referencia a su SwarmBroadcast por BroadcastID. Write-once.
type ConsensusRecord struct {
	BroadcastID string   `json:"broadcast_id"`
	Timestamp   string   `json:"timestamp"`
	Serial      string   `json:"dals_serial,omitempty"`
	Acks        []string `json:"acks"`
	Quorum      int      `json:"quorum"`
	Reached     bool     `json:"reached"`
	Status      string   `json:"status"` // "confirmed"
}

// History es el resultado de GetHistory: summary + eventos mergeados de
// todos los logs de workers, ordenados por timestamp ascendente.
type History struct {
	Status  string              `json:"status"`
	Summary *CertificateSummary `json:"summary,omitempty"`
	Events  []VaultEvent        `json:"events"`
	// CorruptLines cuenta líneas malformadas salteadas durante el scan.
	CorruptLines int `json:"corrupt_lines,omitempty"`
}

// Stats son los contadores agregados del vault.
type Stats struct {
	TotalCertificates int    `json:"total_certificates"`
	TotalEvents       int    `json:"total_events"`
	TotalBroadcasts   int    `json:"total_broadcasts"`
	Workers           int    `json:"workers"`
	IntegrityHash     string `json:"integrity_hash"`
}
