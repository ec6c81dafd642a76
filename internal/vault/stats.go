package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stats cuenta certificados (summaries), eventos (líneas de los logs de
// workers) y broadcasts, más un fingerprint corto del estado agregado.
func (v *Vault) Stats() (Stats, error) {
	summaries, err := filepath.Glob(filepath.Join(v.issuedDir(), "*_summary.json"))
	if err != nil {
		return Stats{}, storageErr("glob summaries", err)
	}

	logs, err := filepath.Glob(filepath.Join(v.eventsDir(), "*_events.jsonl"))
	if err != nil {
		return Stats{}, storageErr("glob event logs", err)
	}

	totalEvents := 0
	for _, path := range logs {
		n, err := countLines(path)
		if err != nil {
			return Stats{}, err
		}
		totalEvents += n
	}

	broadcasts, err := countLines(v.swarmLogPath())
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalCertificates: len(summaries),
		TotalEvents:       totalEvents,
		TotalBroadcasts:   broadcasts,
		Workers:           len(logs),
		IntegrityHash:     v.integrityFingerprint(),
	}, nil
}

// integrityFingerprint resume el estado del vault en un hash corto:
// nombre + tamaño de cada summary, ordenado. Sirve para detectar que
// algo cambió entre dos snapshots; NO es una primitiva de seguridad.
func (v *Vault) integrityFingerprint() string {
	paths, err := filepath.Glob(filepath.Join(v.issuedDir(), "*_summary.json"))
	if err != nil {
		return ""
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "%s:%d|", filepath.Base(p), st.Size())
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:16]
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
