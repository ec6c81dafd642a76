package signer

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Receipt token: un JWT HS256 que liga serial + payload_hash, firmado con
// la misma clave del Signer (la clave no sale del paquete). Se embebe en
// la URL de verificación para que el endpoint público pueda validar el
// link sin ir al vault.

// ReceiptClaims son los claims del token de verificación.
type ReceiptClaims struct {
	PayloadHash string `json:"payload_hash"`
	jwt.RegisteredClaims
}

// ReceiptToken emite un token de verificación para serial/payloadHash.
func (s *Signer) ReceiptToken(serial, payloadHash, issuer string, ttl time.Duration) (string, error) {
	if serial == "" || payloadHash == "" {
		return "", fmt.Errorf("%w: receipt requires serial and payload hash", ErrBadPayload)
	}

	now := s.clock()
	claims := ReceiptClaims{
		PayloadHash: payloadHash,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   serial,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.key)
}

// VerifyReceipt valida un receipt token y retorna (serial, payload_hash).
func (s *Signer) VerifyReceipt(token string) (string, string, error) {
	var claims ReceiptClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return "", "", err
	}
	if !parsed.Valid {
		return "", "", fmt.Errorf("invalid receipt token")
	}
	return claims.Subject, claims.PayloadHash, nil
}
