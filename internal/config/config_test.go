package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Vault.VerifyBaseURL == "" || cfg.Signer.Issuer == "" {
		t.Fatalf("defaults incompletos: %+v", cfg)
	}
	if cfg.Cache.Driver != "memory" {
		t.Fatalf("cache driver = %q", cfg.Cache.Driver)
	}
	if cfg.ReceiptTTL() <= 0 || cfg.CacheTTL() <= 0 {
		t.Fatal("TTLs default inválidos")
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  addr: ":9999"
vault:
  root: /srv/vault
  guardians: [g1, g2, g3]
  quorum: 2
signer:
  issuer: legado
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CUSTODIA_ADDR", ":7777") // env gana sobre YAML
	t.Setenv("CUSTODIA_CHAIN_ID", "test-chain")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Fatalf("addr = %q, el env debe pisar el YAML", cfg.Server.Addr)
	}
	if cfg.Vault.Root != "/srv/vault" || cfg.Signer.Issuer != "legado" {
		t.Fatalf("yaml no aplicado: %+v", cfg)
	}
	if cfg.Signer.ChainID != "test-chain" {
		t.Fatalf("chain_id = %q", cfg.Signer.ChainID)
	}
	if len(cfg.Vault.Guardians) != 3 || cfg.Vault.Quorum != 2 {
		t.Fatalf("guardians/quorum: %+v", cfg.Vault)
	}
}

func TestLoad_RejectsMalformedEnvInt(t *testing.T) {
	t.Setenv("CUSTODIA_REDIS_DB", "nope")

	if _, err := Load(""); err == nil {
		t.Fatal("CUSTODIA_REDIS_DB malformado debe fallar, no usar el default en silencio")
	}
}

func TestLoad_EnvIntApplied(t *testing.T) {
	t.Setenv("CUSTODIA_REDIS_DB", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Cache.Redis.DB != 3 {
		t.Fatalf("redis db = %d, want 3", cfg.Cache.Redis.DB)
	}
}

func TestLoad_RejectsBadQuorum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
vault:
  guardians: [g1]
  quorum: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("quorum > guardians debe fallar")
	}
}

func TestLoad_RejectsBadTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("signer:\n  receipt_ttl: nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("receipt_ttl inválido debe fallar")
	}
}
