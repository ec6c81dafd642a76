package signer

import "testing"

func TestIntegrityScore_FullBundle(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	b, err := s.Sign(map[string]any{"dals_serial": "T1", "owner": "Alice"}, "i")
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}

	sc := IntegrityScore(b)
	if sc.Score != 100 {
		t.Fatalf("score = %d, want 100 (checks: %v)", sc.Score, sc.Checks)
	}
}

func TestIntegrityScore_MonotonicInPresentFields(t *testing.T) {
	t.Parallel()

	b := Bundle{}
	prev := IntegrityScore(b).Score

	// Ir completando campos nunca debe bajar el puntaje
	steps := []func(*Bundle){
		func(b *Bundle) { b.Signature = "sig" },
		func(b *Bundle) { b.PayloadHash = "hash" },
		func(b *Bundle) { b.VerifyingKey = "vk" },
		func(b *Bundle) { b.SignedAt = "now" },
		func(b *Bundle) { b.Serial = "T1" },
	}
	for i, step := range steps {
		step(&b)
		got := IntegrityScore(b).Score
		if got < prev {
			t.Fatalf("paso %d: score bajó de %d a %d", i, prev, got)
		}
		prev = got
	}
	if prev != 100 {
		t.Fatalf("score final = %d, want 100", prev)
	}
}

func TestIntegrityScore_EmptyBundleIsZero(t *testing.T) {
	t.Parallel()

	sc := IntegrityScore(Bundle{})
	if sc.Score != 0 {
		t.Fatalf("score = %d, want 0", sc.Score)
	}
	if len(sc.Checks) != 5 {
		t.Fatalf("checks = %d, want 5", len(sc.Checks))
	}
}
