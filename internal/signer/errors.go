package signer

import "errors"

var (
	// ErrKeyConfig indica que la clave de firmado no se pudo cargar ni
	// generar/persistir. Es fatal: el servicio no debe arrancar sin clave
	// reproducible.
	ErrKeyConfig = errors.New("signer: key configuration error")

	// ErrBadPayload indica un payload no serializable o vacío.
	ErrBadPayload = errors.New("signer: malformed payload")
)
