package vault

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func lastLine(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	last := ""
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			last = sc.Text()
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return last
}

func TestBroadcast_CorrelatedPair(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	certData := map[string]any{
		"dals_serial":  "T1",
		"payload_hash": "abcd",
		"owner":        "Alice",
	}
	id, err := v.Broadcast(certData)
	if err != nil {
		t.Fatalf("Broadcast err: %v", err)
	}
	if id == "" {
		t.Fatal("broadcast_id vacío")
	}

	// El broadcast_id correlaciona la última entrada de ambos logs
	var bc SwarmBroadcast
	if err := json.Unmarshal([]byte(lastLine(t, v.swarmLogPath())), &bc); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	var cons ConsensusRecord
	if err := json.Unmarshal([]byte(lastLine(t, v.consensusLogPath())), &cons); err != nil {
		t.Fatalf("decode consensus: %v", err)
	}

	if bc.BroadcastID != id || cons.BroadcastID != id {
		t.Fatalf("ids: broadcast=%q consensus=%q want %q", bc.BroadcastID, cons.BroadcastID, id)
	}
	if bc.Status != "broadcast" || cons.Status != "confirmed" {
		t.Fatalf("status: %q / %q", bc.Status, cons.Status)
	}
	if !cons.Reached {
		t.Fatal("consenso simulado debe ser unánime")
	}
	if len(cons.Acks) != len(bc.Guardians) {
		t.Fatalf("acks = %d, guardians = %d", len(cons.Acks), len(bc.Guardians))
	}
	if cons.Quorum <= 0 || cons.Quorum > len(bc.Guardians) {
		t.Fatalf("quorum fuera de rango: %d", cons.Quorum)
	}
}

func TestBroadcast_ConfirmsHistoryStatus(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	payload := map[string]any{"dals_serial": "T5"}
	bundle := testBundle(t, payload)
	if _, err := v.RecordIssuance(context.Background(), "w1", "T5", "", payload, bundle); err != nil {
		t.Fatal(err)
	}

	h, err := v.GetHistory("T5")
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != StatusMinted {
		t.Fatalf("pre-broadcast status = %q", h.Status)
	}

	if _, err := v.Broadcast(map[string]any{"dals_serial": "T5", "payload_hash": bundle.PayloadHash}); err != nil {
		t.Fatal(err)
	}

	h, err = v.GetHistory("T5")
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != StatusBroadcastConfirmed {
		t.Fatalf("post-broadcast status = %q, want %q", h.Status, StatusBroadcastConfirmed)
	}
}

func TestBroadcast_NilDataRejected(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	if _, err := v.Broadcast(nil); err == nil {
		t.Fatal("expected error con cert data nil")
	}
}
