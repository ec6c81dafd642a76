package signer

// Scorecard es el resultado de IntegrityScore: qué campos del bundle
// están presentes y el puntaje agregado 0-100.
type Scorecard struct {
	Score  int             `json:"score"`
	Checks map[string]bool `json:"checks"`
}

// IntegrityScore cuenta los campos no vacíos del bundle sobre el set
// requerido {signature, payload_hash, verifying_key, signed_at, serial}.
// Función pura y total: nunca falla, cualquier Bundle es válido como input.
// Agregar un campo faltante nunca baja el puntaje.
func IntegrityScore(b Bundle) Scorecard {
	checks := map[string]bool{
		"signature":     b.Signature != "",
		"payload_hash":  b.PayloadHash != "",
		"verifying_key": b.VerifyingKey != "",
		"signed_at":     b.SignedAt != "",
		"serial":        b.Serial != "",
	}

	present := 0
	for _, ok := range checks {
		if ok {
			present++
		}
	}

	return Scorecard{
		Score:  present * 100 / len(checks),
		Checks: checks,
	}
}
