package signer

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/dropDatabas3/custodia/internal/util/atomicwrite"
)

const (
	// Algorithm es el esquema de firmado. Los nombres de campo del bundle
	// vienen del producto original (que usaba nomenclatura asimétrica);
	// el esquema real es un MAC simétrico.
	Algorithm = "HMAC-SHA256"

	keyLen   = 32 // 256 bits
	sigIDLen = 16 // primeros 16 hex chars de la firma

	fingerprintInfo = "custodia/verifying-key/v1"
)

// Bundle es el resultado inmutable de una operación de firmado.
type Bundle struct {
	PayloadHash  string `json:"payload_hash"`
	Signature    string `json:"signature"`
	SigID        string `json:"sig_id"`
	VerifyingKey string `json:"verifying_key"`
	Issuer       string `json:"issuer"`
	Algorithm    string `json:"algorithm"`
	SignedAt     string `json:"signed_at"`
	// Serial se extrae del payload (dals_serial o serial) si está presente.
	Serial string `json:"dals_serial,omitempty"`
}

// Options configura la construcción del Signer.
type Options struct {
	// KeyPath es la ruta al archivo de clave (binario, 32 bytes).
	// Si el archivo existe se carga; si no, se genera una clave nueva y se
	// persiste ANTES del primer uso. Si la ruta no es escribible, New falla
	// (nunca operamos con una clave efímera que no se pueda reproducir).
	//
	// Vacío ⇒ clave efímera en memoria (solo tests / dev explícito).
	KeyPath string

	// Clock permite inyectar el reloj (tests). Default: time.Now UTC.
	Clock func() time.Time
}

// Signer firma payloads de certificados. Es seguro para uso concurrente
// sin sincronización: su único estado es la clave, inmutable tras New.
type Signer struct {
	key         []byte
	fingerprint string
	clock       func() time.Time
}

// New construye un Signer cargando o generando la clave según Options.
func New(opts Options) (*Signer, error) {
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	key, err := loadOrCreateKey(opts.KeyPath)
	if err != nil {
		return nil, err
	}

	fp, err := deriveFingerprint(key)
	if err != nil {
		return nil, fmt.Errorf("%w: derive fingerprint: %v", ErrKeyConfig, err)
	}

	return &Signer{key: key, fingerprint: fp, clock: clock}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	if path == "" {
		// Efímero: válido solo para tests/dev. Las firmas no sobreviven al proceso.
		key := make([]byte, keyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("%w: generate ephemeral key: %v", ErrKeyConfig, err)
		}
		return key, nil
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(b) < keyLen {
			return nil, fmt.Errorf("%w: key file %s has %d bytes, need %d", ErrKeyConfig, path, len(b), keyLen)
		}
		return b[:keyLen], nil
	case os.IsNotExist(err):
		// Generar y persistir antes del primer uso
		key := make([]byte, keyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("%w: generate key: %v", ErrKeyConfig, err)
		}
		if err := atomicwrite.AtomicWriteFile(path, key, 0o600); err != nil {
			return nil, fmt.Errorf("%w: persist key to %s: %v", ErrKeyConfig, path, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: read key file %s: %v", ErrKeyConfig, path, err)
	}
}

// deriveFingerprint deriva el identificador público de la clave vía HKDF.
// Publicable: no revela la clave, pero identifica qué clave firmó.
func deriveFingerprint(key []byte) (string, error) {
	r := hkdf.New(sha256.New, key, nil, []byte(fingerprintInfo))
	fp := make([]byte, 32)
	if _, err := io.ReadFull(r, fp); err != nil {
		return "", err
	}
	return hex.EncodeToString(fp), nil
}

// VerifyingKey retorna el fingerprint derivado de la clave (nunca la clave).
func (s *Signer) VerifyingKey() string { return s.fingerprint }

// Sign canonicaliza el payload, calcula SHA-256 y firma el hash con HMAC.
// Función pura del payload + clave: sin efectos secundarios.
func (s *Signer) Sign(payload map[string]any, issuer string) (Bundle, error) {
	hash, err := s.payloadHash(payload)
	if err != nil {
		return Bundle{}, err
	}

	sig := s.mac(hash)

	return Bundle{
		PayloadHash:  hash,
		Signature:    sig,
		SigID:        sig[:sigIDLen],
		VerifyingKey: s.fingerprint,
		Issuer:       issuer,
		Algorithm:    Algorithm,
		SignedAt:     s.clock().Format(time.RFC3339Nano),
		Serial:       serialFromPayload(payload),
	}, nil
}

// Verify recalcula hash y MAC igual que Sign y compara en tiempo constante.
// Un mismatch NO es un error: retorna (false, nil). Solo un payload
// malformado produce error.
func (s *Signer) Verify(payload map[string]any, claimedSig string) (bool, error) {
	hash, err := s.payloadHash(payload)
	if err != nil {
		return false, err
	}

	expected := s.mac(hash)
	claimed := strings.ToLower(strings.TrimSpace(claimedSig))

	// hmac.Equal: comparación en tiempo constante (un == de strings acá es defecto)
	return hmac.Equal([]byte(expected), []byte(claimed)), nil
}

func (s *Signer) payloadHash(payload map[string]any) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// mac firma el hash hex (no los bytes crudos del digest): el MAC cubre
// exactamente lo que se publica como payload_hash.
func (s *Signer) mac(hashHex string) string {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(hashHex))
	return hex.EncodeToString(m.Sum(nil))
}

// serialFromPayload extrae el serial si el payload lo trae.
// El producto original usa "dals_serial"; aceptamos "serial" como alias.
func serialFromPayload(payload map[string]any) string {
	for _, k := range []string{"dals_serial", "serial"} {
		if v, ok := payload[k]; ok {
			if str, ok := v.(string); ok {
				return str
			}
		}
	}
	return ""
}
