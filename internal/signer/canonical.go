package signer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Canonicalize serializa un payload de forma determinística:
// keys ordenadas recursivamente, separadores compactos, sin escape HTML.
// Dos payloads con el mismo contenido lógico producen bytes idénticos,
// sin importar el orden de inserción. Este es el invariante que sostiene
// la verificación round-trip: hash(canonical(P)) es función pura de P.
func Canonicalize(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrBadPayload)
	}

	// json.Marshal ya ordena keys de maps en todos los niveles.
	// Usamos Encoder para desactivar el escape HTML (&, <, >) y que el
	// canonical no dependa de ese detalle del encoder.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	// Encode agrega un '\n' final que no es parte del canonical
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
