package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/custodia/internal/metrics"
	"github.com/dropDatabas3/custodia/internal/observability/logger"
	"github.com/dropDatabas3/custodia/internal/signer"
)

// Guardianes réplica por defecto del enjambre simulado.
var DefaultGuardians = []string{"guardian-alpha", "guardian-beta", "guardian-gamma"}

const DefaultQuorum = 2

// Indexer es el punto de extensión para indexar emisiones por serial en
// un backend con lookup de baja latencia (ej: Postgres). Best-effort:
// un fallo del indexer no aborta la emisión, el vault en disco manda.
type Indexer interface {
	IndexIssuance(ctx context.Context, s CertificateSummary) error
}

// Options configura el Vault.
type Options struct {
	// Root es el directorio raíz del vault. Requerido.
	Root string

	// VerifyBaseURL arma las URLs de verificación: <base>/<serial>.
	// Default: "https://verify.custodia.local"
	VerifyBaseURL string

	// Guardians y Quorum parametrizan el enjambre simulado.
	Guardians []string
	Quorum    int

	// Clock inyectable para tests. Default: time.Now UTC.
	Clock func() time.Time

	// Indexer opcional (ver Indexer). Nil ⇒ sin índice.
	Indexer Indexer
}

// Vault es el puente de auditoría. Construcción explícita con New:
// nada de singletons a nivel de paquete, cada test instancia el suyo.
type Vault struct {
	root          string
	verifyBaseURL string
	guardians     []string
	quorum        int
	clock         func() time.Time
	indexer       Indexer
	log           *zap.Logger

	// Un mutex por log de worker: los appends a un mismo archivo se
	// serializan, appends a logs distintos corren en paralelo.
	workerMu    sync.Mutex
	workerLocks map[string]*sync.Mutex

	// Escrituras de summary serializadas globalmente (simplificación
	// documentada: alcanza para la escala de auditoría esperada).
	summaryMu sync.Mutex

	swarmMu     sync.Mutex
	consensusMu sync.Mutex
}

// New crea el layout en disco y retorna el Vault.
func New(opts Options) (*Vault, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: vault root is required", ErrBadInput)
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	base := opts.VerifyBaseURL
	if base == "" {
		base = "https://verify.custodia.local"
	}
	guardians := opts.Guardians
	if len(guardians) == 0 {
		guardians = DefaultGuardians
	}
	quorum := opts.Quorum
	if quorum <= 0 || quorum > len(guardians) {
		quorum = DefaultQuorum
		if quorum > len(guardians) {
			quorum = len(guardians)
		}
	}

	v := &Vault{
		root:          filepath.Clean(opts.Root),
		verifyBaseURL: base,
		guardians:     guardians,
		quorum:        quorum,
		clock:         clock,
		indexer:       opts.Indexer,
		log:           logger.Named("vault"),
		workerLocks:   map[string]*sync.Mutex{},
	}

	for _, dir := range []string{v.eventsDir(), v.issuedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("create vault layout", err)
		}
	}

	return v, nil
}

func (v *Vault) eventsDir() string { return filepath.Join(v.root, "events") }
func (v *Vault) issuedDir() string {
	return filepath.Join(v.root, "certificates", "issued")
}

// validIdent acota serials y worker ids al charset seguro para nombres
// de archivo: alfanumérico más '-', '_', '.'. Sin separadores de path y
// sin "."/"..", los identificadores no pueden salirse del vault root.
func validIdent(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func (v *Vault) workerLogPath(workerID string) string {
	return filepath.Join(v.eventsDir(), workerID+"_events.jsonl")
}

func (v *Vault) summaryPath(serial string) string {
	return filepath.Join(v.issuedDir(), serial+"_summary.json")
}

func (v *Vault) swarmLogPath() string {
	return filepath.Join(v.eventsDir(), "swarm_broadcasts.jsonl")
}

func (v *Vault) consensusLogPath() string {
	return filepath.Join(v.eventsDir(), "swarm_consensus.jsonl")
}

// VerificationURL arma la URL pública de verificación para un serial.
func (v *Vault) VerificationURL(serial string) string {
	return v.verifyBaseURL + "/" + serial
}

func (v *Vault) lockForWorker(workerID string) *sync.Mutex {
	v.workerMu.Lock()
	defer v.workerMu.Unlock()
	mu, ok := v.workerLocks[workerID]
	if !ok {
		mu = &sync.Mutex{}
		v.workerLocks[workerID] = mu
	}
	return mu
}

// RecordIssuance agrega exactamente un VaultEvent al log del worker y
// sobreescribe el CertificateSummary del serial (last-write-wins).
// Retorna un tx id derivado de serial + timestamp: único mientras no
// haya dos emisiones del mismo serial en el mismo nanosegundo
// (limitación conocida, no garantía dura).
//
// Llamadas concurrentes para serials distintos son seguras; para el
// mismo serial, gana la última (documentado, no corregido).
func (v *Vault) RecordIssuance(ctx context.Context, workerID, serial, artifactRef string, payload map[string]any, bundle signer.Bundle) (string, error) {
	if !validIdent(workerID) {
		return "", fmt.Errorf("%w: invalid worker_id %q", ErrBadInput, workerID)
	}
	if !validIdent(serial) {
		return "", fmt.Errorf("%w: invalid serial %q", ErrBadInput, serial)
	}
	if payload == nil {
		return "", fmt.Errorf("%w: nil payload", ErrBadInput)
	}
	if bundle.Signature == "" || bundle.PayloadHash == "" {
		return "", fmt.Errorf("%w: incomplete signature bundle", ErrBadInput)
	}

	now := v.clock()
	reissued := v.summaryExists(serial)

	event := VaultEvent{
		Timestamp:    now.Format(time.RFC3339Nano),
		EventType:    EventCertificateMinted,
		Serial:       serial,
		WorkerID:     workerID,
		PayloadHash:  bundle.PayloadHash,
		Signature:    truncateSig(bundle.Signature),
		ArtifactSize: artifactSize(artifactRef),
		ArtifactPath: artifactRef,
		Reissued:     reissued,
	}

	if err := v.appendWorkerEvent(workerID, event); err != nil {
		return "", err
	}
	metrics.IncVaultEvent(workerID)

	summary := CertificateSummary{
		Serial:          serial,
		WorkerID:        workerID,
		Payload:         payload,
		Signature:       bundle,
		MintedAt:        now.Format(time.RFC3339Nano),
		VerificationURL: v.VerificationURL(serial),
		ArtifactPath:    artifactRef,
		VaultIntegrity:  v.integrityFingerprint(),
		Reissued:        reissued,
	}

	if err := v.writeSummary(summary); err != nil {
		return "", err
	}
	metrics.IncMinted(workerID)

	txID := fmt.Sprintf("VLT-%s-%d", serial, now.UnixNano())

	v.log.Info("certificate issuance recorded",
		logger.Serial(serial),
		logger.WorkerID(workerID),
		logger.PayloadHash(bundle.PayloadHash),
		logger.TxID(txID),
		zap.Bool("reissued", reissued),
	)

	// Índice por serial: best-effort, el vault en disco es la autoridad
	if v.indexer != nil {
		if err := v.indexer.IndexIssuance(ctx, summary); err != nil {
			v.log.Warn("serial index update failed", logger.Serial(serial), logger.Err(err))
		}
	}

	return txID, nil
}

func truncateSig(sig string) string {
	if len(sig) <= 32 {
		return sig
	}
	return sig[:32]
}

func artifactSize(path string) int64 {
	if path == "" {
		return 0
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
