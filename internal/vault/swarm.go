package vault

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/custodia/internal/metrics"
	"github.com/dropDatabas3/custodia/internal/observability/logger"
)

// Broadcast agrega un SwarmBroadcast y, sincrónicamente, su
// ConsensusRecord correlacionado por broadcast_id.
//
// SIMULACIÓN: los guardianes son IDs fijos y el ACK es unánime por
// construcción. No hay protocolo distribuido; la interfaz existe para
// poder enchufar un broadcast real sin tocar a los callers.
func (v *Vault) Broadcast(certData map[string]any) (string, error) {
	if certData == nil {
		return "", fmt.Errorf("%w: nil certificate data", ErrBadInput)
	}

	id := uuid.NewString()
	now := v.clock().Format(time.RFC3339Nano)
	serial := stringField(certData, "dals_serial", "serial")

	bc := SwarmBroadcast{
		BroadcastID: id,
		Timestamp:   now,
		Serial:      serial,
		PayloadHash: stringField(certData, "payload_hash"),
		Certificate: certData,
		Guardians:   v.guardians,
		Quorum:      v.quorum,
		Status:      "broadcast",
	}

	v.swarmMu.Lock()
	err := appendJSONLine(v.swarmLogPath(), bc)
	v.swarmMu.Unlock()
	if err != nil {
		return "", err
	}

	// Consenso unánime simulado: todos los guardianes "responden" ya
	consensus := ConsensusRecord{
		BroadcastID: id,
		Timestamp:   now,
		Serial:      serial,
		Acks:        v.guardians,
		Quorum:      v.quorum,
		Reached:     true,
		Status:      "confirmed",
	}

	v.consensusMu.Lock()
	err = appendJSONLine(v.consensusLogPath(), consensus)
	v.consensusMu.Unlock()
	if err != nil {
		return "", err
	}

	metrics.IncBroadcast()
	v.log.Info("swarm broadcast recorded (simulated consensus)",
		logger.BroadcastID(id),
		logger.Serial(serial),
		logger.Int("guardians", len(v.guardians)),
	)

	return id, nil
}

// serialHasConsensus revisa el log de consenso buscando un record
// confirmado para el serial. Líneas corruptas se saltean igual que en
// los scans de eventos.
func (v *Vault) serialHasConsensus(serial string) (bool, error) {
	f, err := os.Open(v.consensusLogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, storageErr("open consensus log", err)
	}
	defer f.Close()

	name := filepath.Base(v.consensusLogPath())
	found := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLogLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec ConsensusRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			metrics.IncCorruptLine(name)
			continue
		}
		if rec.Serial == serial && rec.Reached {
			found = true
		}
	}
	if err := sc.Err(); err != nil {
		return false, storageErr("scan consensus log", err)
	}
	return found, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
