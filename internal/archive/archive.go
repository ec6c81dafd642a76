// Package archive es el índice por serial del vault: un backend con
// lookup de baja latencia para quien no puede pagar el scan lineal de
// los logs. Es un espejo best-effort; el vault en disco es la autoridad
// y la fuente de verdad de auditoría.
package archive

import (
	"context"

	"github.com/dropDatabas3/custodia/internal/vault"
)

// Store indexa emisiones y resuelve lookups por serial.
type Store interface {
	vault.Indexer

	// LookupSerial retorna el último summary indexado para serial.
	// (nil, nil) si no está indexado.
	LookupSerial(ctx context.Context, serial string) (*vault.CertificateSummary, error)

	// Close libera las conexiones del backend.
	Close()
}
