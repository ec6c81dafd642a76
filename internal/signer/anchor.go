package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AnchorRecord es un registro de anclaje SIMULADO. La referencia de
// transacción es sintética: no hubo submit a ninguna blockchain.
// El campo Simulated queda persistido para que nadie lo confunda con
// una garantía on-chain.
type AnchorRecord struct {
	TxRef       string `json:"tx_ref"`
	ChainID     string `json:"chain_id"`
	PayloadHash string `json:"payload_hash"`
	BlockHint   uint64 `json:"block_hint"`
	AnchoredAt  string `json:"anchored_at"`
	Simulated   bool   `json:"simulated"`
}

// FabricateAnchor fabrica un AnchorRecord sintético para payloadHash en
// chainID. Mezcla el reloj del Signer, así que NO es idempotente entre
// llamadas; con un Clock inyectado fijo sí es determinístico (tests).
func (s *Signer) FabricateAnchor(payloadHash, chainID string) AnchorRecord {
	now := s.clock()

	seed := fmt.Sprintf("%s|%s|%d", payloadHash, chainID, now.UnixNano())
	sum := sha256.Sum256([]byte(seed))

	return AnchorRecord{
		TxRef:       "0x" + hex.EncodeToString(sum[:]),
		ChainID:     chainID,
		PayloadHash: payloadHash,
		// Altura de bloque ficticia derivada del tiempo; solo da color al registro
		BlockHint:  uint64(now.Unix() % 10_000_000),
		AnchoredAt: now.Format(time.RFC3339Nano),
		Simulated:  true,
	}
}
