package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: no hay summary para ese serial.
	ErrNotFound = errors.New("vault: certificate not found")

	// ErrBadInput: faltan identificadores requeridos o el payload no es serializable.
	ErrBadInput = errors.New("vault: bad input")

	// ErrStorage: fallo de filesystem durante append/write/read.
	// Fatal para la operación en curso; no se reintenta acá.
	ErrStorage = errors.New("vault: storage error")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
