package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dropDatabas3/custodia/internal/signer"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(Options{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	return v
}

func testBundle(t *testing.T, payload map[string]any) signer.Bundle {
	t.Helper()
	s, err := signer.New(signer.Options{})
	if err != nil {
		t.Fatalf("signer.New err: %v", err)
	}
	b, err := s.Sign(payload, "custodia-test")
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}
	return b
}

func TestRecordIssuance_ThenHistory(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	payload := map[string]any{"dals_serial": "T1", "owner": "Alice"}
	bundle := testBundle(t, payload)

	artifact := filepath.Join(t.TempDir(), "a.pdf")
	if err := os.WriteFile(artifact, []byte("pdf-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	txID, err := v.RecordIssuance(context.Background(), "w1", "T1", artifact, payload, bundle)
	if err != nil {
		t.Fatalf("RecordIssuance err: %v", err)
	}
	if !strings.HasPrefix(txID, "VLT-T1-") {
		t.Fatalf("tx id inesperado: %q", txID)
	}

	h, err := v.GetHistory("T1")
	if err != nil {
		t.Fatalf("GetHistory err: %v", err)
	}
	if h.Status != StatusMinted {
		t.Fatalf("status = %q, want %q", h.Status, StatusMinted)
	}
	if h.Summary == nil || h.Summary.Serial != "T1" {
		t.Fatalf("summary: %+v", h.Summary)
	}
	if len(h.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(h.Events))
	}
	ev := h.Events[0]
	if ev.EventType != EventCertificateMinted {
		t.Fatalf("event_type = %q", ev.EventType)
	}
	if ev.WorkerID != "w1" || ev.Serial != "T1" {
		t.Fatalf("event: %+v", ev)
	}
	if ev.ArtifactSize != int64(len("pdf-bytes")) {
		t.Fatalf("artifact_size = %d", ev.ArtifactSize)
	}
	if len(ev.Signature) != 32 {
		t.Fatalf("la firma en el evento debe ir truncada a 32: %q", ev.Signature)
	}
	if h.Summary.VerificationURL == "" || !strings.HasSuffix(h.Summary.VerificationURL, "/T1") {
		t.Fatalf("verification_url: %q", h.Summary.VerificationURL)
	}
}

func TestRecordIssuance_SameSerialTwice(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	p1 := map[string]any{"dals_serial": "T2", "owner": "Alice"}
	p2 := map[string]any{"dals_serial": "T2", "owner": "Bob"}

	if _, err := v.RecordIssuance(context.Background(), "w1", "T2", "", p1, testBundle(t, p1)); err != nil {
		t.Fatalf("primera emisión: %v", err)
	}
	if _, err := v.RecordIssuance(context.Background(), "w1", "T2", "", p2, testBundle(t, p2)); err != nil {
		t.Fatalf("segunda emisión: %v", err)
	}

	h, err := v.GetHistory("T2")
	if err != nil {
		t.Fatalf("GetHistory err: %v", err)
	}

	// Exactamente un summary (last-write-wins), dos eventos en el log
	if len(h.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(h.Events))
	}
	if got := h.Summary.Payload["owner"]; got != "Bob" {
		t.Fatalf("summary no es el último: owner = %v", got)
	}
	if !h.Summary.Reissued {
		t.Fatal("re-emisión debe marcarse reissued")
	}
	if h.Events[0].Reissued || !h.Events[1].Reissued {
		t.Fatalf("flags reissued: %v %v", h.Events[0].Reissued, h.Events[1].Reissued)
	}

	matches, _ := filepath.Glob(filepath.Join(v.issuedDir(), "*_summary.json"))
	if len(matches) != 1 {
		t.Fatalf("summaries en disco = %d, want 1", len(matches))
	}
}

func TestGetHistory_UnknownSerialIsNotFound(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	h, err := v.GetHistory("no-such-serial")
	if err != nil {
		t.Fatalf("not-found no debe ser error: %v", err)
	}
	if h.Status != StatusNotFound {
		t.Fatalf("status = %q, want %q", h.Status, StatusNotFound)
	}
	if h.Summary != nil {
		t.Fatal("summary debe ser nil")
	}
}

func TestGetHistory_SkipsCorruptLines(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	payload := map[string]any{"dals_serial": "T3"}
	if _, err := v.RecordIssuance(context.Background(), "w1", "T3", "", payload, testBundle(t, payload)); err != nil {
		t.Fatal(err)
	}

	// Inyectar basura en el medio del log y una emisión válida después
	logPath := v.workerLogPath("w1")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{esto no es json\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	if _, err := v.RecordIssuance(context.Background(), "w1", "T3", "", payload, testBundle(t, payload)); err != nil {
		t.Fatal(err)
	}

	h, err := v.GetHistory("T3")
	if err != nil {
		t.Fatalf("una línea corrupta no debe abortar el scan: %v", err)
	}
	if len(h.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(h.Events))
	}
	if h.CorruptLines != 1 {
		t.Fatalf("corrupt_lines = %d, want 1", h.CorruptLines)
	}
}

func TestRecordIssuance_BadInput(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)
	payload := map[string]any{"dals_serial": "T4"}
	bundle := testBundle(t, payload)
	ctx := context.Background()

	cases := []struct {
		name           string
		worker, serial string
		payload        map[string]any
		bundle         signer.Bundle
	}{
		{"sin worker", "", "T4", payload, bundle},
		{"sin serial", "w1", "", payload, bundle},
		{"payload nil", "w1", "T4", nil, bundle},
		{"bundle vacío", "w1", "T4", payload, signer.Bundle{}},
	}
	for _, tc := range cases {
		if _, err := v.RecordIssuance(ctx, tc.worker, tc.serial, "", tc.payload, tc.bundle); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestRecordIssuance_RejectsPathTraversalIdentifiers(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	root := filepath.Join(parent, "vault")
	v, err := New(Options{Root: root})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	payload := map[string]any{"dals_serial": "T6"}
	bundle := testBundle(t, payload)
	ctx := context.Background()

	badIdents := []string{
		"../../../escaped",
		"..",
		"a/b",
		`a\b`,
		"serial con espacios",
	}
	for _, bad := range badIdents {
		if _, err := v.RecordIssuance(ctx, "w1", bad, "", payload, bundle); !errors.Is(err, ErrBadInput) {
			t.Fatalf("serial %q: err = %v, want ErrBadInput", bad, err)
		}
		if _, err := v.RecordIssuance(ctx, bad, "T6", "", payload, bundle); !errors.Is(err, ErrBadInput) {
			t.Fatalf("worker %q: err = %v, want ErrBadInput", bad, err)
		}
		if _, err := v.GetSummary(bad); !errors.Is(err, ErrBadInput) {
			t.Fatalf("GetSummary(%q): err = %v, want ErrBadInput", bad, err)
		}
		if _, err := v.GetHistory(bad); !errors.Is(err, ErrBadInput) {
			t.Fatalf("GetHistory(%q): err = %v, want ErrBadInput", bad, err)
		}
	}

	// Nada debe haberse escrito fuera del root del vault
	if _, err := os.Stat(filepath.Join(parent, "escaped_summary.json")); !os.IsNotExist(err) {
		t.Fatalf("un summary escapó del vault root: %v", err)
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "vault" {
		t.Fatalf("archivos inesperados junto al vault root: %v", entries)
	}

	// Identificadores del charset permitido siguen funcionando
	if _, err := v.RecordIssuance(ctx, "worker-01.a", "SER_01.v2", "", payload, bundle); err != nil {
		t.Fatalf("identificador válido rechazado: %v", err)
	}
}

func TestRecordIssuance_ConcurrentDistinctSerials(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			serial := "C" + string(rune('A'+i))
			payload := map[string]any{"dals_serial": serial}
			_, err := v.RecordIssuance(context.Background(), "w1", serial, "", payload, testBundle(t, payload))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("emisión concurrente: %v", err)
		}
	}

	st, err := v.Stats()
	if err != nil {
		t.Fatalf("Stats err: %v", err)
	}
	if st.TotalCertificates != n {
		t.Fatalf("certificates = %d, want %d", st.TotalCertificates, n)
	}
	// Appends serializados: n líneas intactas en el log del worker
	if st.TotalEvents != n {
		t.Fatalf("events = %d, want %d", st.TotalEvents, n)
	}
}

func TestStats_Counts(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	for _, serial := range []string{"S1", "S2"} {
		payload := map[string]any{"dals_serial": serial}
		if _, err := v.RecordIssuance(context.Background(), "w-"+serial, serial, "", payload, testBundle(t, payload)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := v.Broadcast(map[string]any{"dals_serial": "S1"}); err != nil {
		t.Fatal(err)
	}

	st, err := v.Stats()
	if err != nil {
		t.Fatalf("Stats err: %v", err)
	}
	if st.TotalCertificates != 2 || st.TotalEvents != 2 || st.Workers != 2 || st.TotalBroadcasts != 1 {
		t.Fatalf("stats: %+v", st)
	}
	if len(st.IntegrityHash) != 16 {
		t.Fatalf("integrity_hash: %q", st.IntegrityHash)
	}

	// El fingerprint cambia si cambia el estado
	payload := map[string]any{"dals_serial": "S3"}
	if _, err := v.RecordIssuance(context.Background(), "w1", "S3", "", payload, testBundle(t, payload)); err != nil {
		t.Fatal(err)
	}
	st2, err := v.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st2.IntegrityHash == st.IntegrityHash {
		t.Fatal("integrity_hash no cambió tras nueva emisión")
	}
}
