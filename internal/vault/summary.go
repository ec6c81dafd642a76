package vault

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dropDatabas3/custodia/internal/util/atomicwrite"
)

// writeSummary sobreescribe el summary del serial de forma atómica.
// Last-write-wins por diseño: re-emitir un serial pisa el anterior.
func (v *Vault) writeSummary(s CertificateSummary) error {
	v.summaryMu.Lock()
	defer v.summaryMu.Unlock()

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal summary: %v", ErrBadInput, err)
	}
	if err := atomicwrite.AtomicWriteFile(v.summaryPath(s.Serial), b, 0o644); err != nil {
		return storageErr("write summary "+s.Serial, err)
	}
	return nil
}

// GetSummary lee el summary de un serial. ErrNotFound si no existe.
func (v *Vault) GetSummary(serial string) (CertificateSummary, error) {
	if !validIdent(serial) {
		return CertificateSummary{}, fmt.Errorf("%w: invalid serial %q", ErrBadInput, serial)
	}

	b, err := os.ReadFile(v.summaryPath(serial))
	if err != nil {
		if os.IsNotExist(err) {
			return CertificateSummary{}, fmt.Errorf("%w: %s", ErrNotFound, serial)
		}
		return CertificateSummary{}, storageErr("read summary "+serial, err)
	}

	var s CertificateSummary
	if err := json.Unmarshal(b, &s); err != nil {
		return CertificateSummary{}, storageErr("decode summary "+serial, err)
	}
	return s, nil
}

func (v *Vault) summaryExists(serial string) bool {
	st, err := os.Stat(v.summaryPath(serial))
	return err == nil && !st.IsDir()
}

// GetHistory retorna el summary + todos los eventos del serial mergeados
// de los logs de workers, ordenados por timestamp ascendente.
// Serial desconocido ⇒ History{Status: not_found}, sin error: el caller
// decide cómo presentarlo.
func (v *Vault) GetHistory(serial string) (History, error) {
	if !validIdent(serial) {
		return History{}, fmt.Errorf("%w: invalid serial %q", ErrBadInput, serial)
	}

	summary, err := v.GetSummary(serial)
	if err != nil {
		if isNotFound(err) {
			return History{Status: StatusNotFound, Events: []VaultEvent{}}, nil
		}
		return History{}, err
	}

	events, corrupt, err := v.scanWorkerLogs(serial)
	if err != nil {
		return History{}, err
	}
	if events == nil {
		events = []VaultEvent{}
	}

	status := StatusMinted
	confirmed, err := v.serialHasConsensus(serial)
	if err != nil {
		return History{}, err
	}
	if confirmed {
		status = StatusBroadcastConfirmed
	}

	return History{
		Status:       status,
		Summary:      &summary,
		Events:       events,
		CorruptLines: corrupt,
	}, nil
}
