// Package signer implementa el motor de firmado de certificados.
//
// El firmado es simétrico: HMAC-SHA256 sobre el hash canónico del payload.
// La clave nunca sale del paquete; hacia afuera solo se expone un fingerprint
// derivado (verifying_key). Verificar requiere la misma clave compartida —
// no hay verificación por terceros sin el secreto (ver DESIGN.md).
//
// El anchor "blockchain" que produce FabricateAnchor es una SIMULACIÓN:
// genera una referencia de transacción sintética y no envía nada a ninguna
// chain. Callers no deben tratarlo como garantía on-chain.
package signer
