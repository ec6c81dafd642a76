// Package config carga la configuración del servicio: YAML + overrides
// por variables de entorno (CUSTODIA_*). El .env se carga en main con
// godotenv antes de llamar a Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Vault struct {
		Root          string   `yaml:"root"`
		VerifyBaseURL string   `yaml:"verify_base_url"`
		Guardians     []string `yaml:"guardians"`
		Quorum        int      `yaml:"quorum"`
	} `yaml:"vault"`

	Signer struct {
		KeyPath    string `yaml:"key_path"`
		Issuer     string `yaml:"issuer"`
		ChainID    string `yaml:"chain_id"`
		ReceiptTTL string `yaml:"receipt_ttl"` // ej: "720h"
	} `yaml:"signer"`

	Cache struct {
		Driver string `yaml:"driver"` // memory | redis
		TTL    string `yaml:"ttl"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Archive struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"archive"`

	Notify struct {
		Enabled bool `yaml:"enabled"`
		SMTP    struct {
			Host    string `yaml:"host"`
			Port    int    `yaml:"port"`
			From    string `yaml:"from"`
			User    string `yaml:"user"`
			Pass    string `yaml:"pass"`
			TLSMode string `yaml:"tls_mode"`
		} `yaml:"smtp"`
	} `yaml:"notify"`
}

// Load lee el YAML (si path no es vacío y existe), aplica overrides de
// entorno y defaults, y valida lo mínimo para arrancar.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.App.Env = getenv("CUSTODIA_ENV", c.App.Env)
	c.Server.Addr = getenv("CUSTODIA_ADDR", c.Server.Addr)
	if v := os.Getenv("CUSTODIA_CORS_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitCSV(v)
	}
	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)

	c.Vault.Root = getenv("CUSTODIA_VAULT_ROOT", c.Vault.Root)
	c.Vault.VerifyBaseURL = getenv("CUSTODIA_VERIFY_BASE_URL", c.Vault.VerifyBaseURL)

	c.Signer.KeyPath = getenv("CUSTODIA_SIGNING_KEY", c.Signer.KeyPath)
	c.Signer.Issuer = getenv("CUSTODIA_ISSUER", c.Signer.Issuer)
	c.Signer.ChainID = getenv("CUSTODIA_CHAIN_ID", c.Signer.ChainID)

	c.Cache.Driver = getenv("CUSTODIA_CACHE_DRIVER", c.Cache.Driver)
	c.Cache.Redis.Addr = getenv("CUSTODIA_REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.Password = getenv("CUSTODIA_REDIS_PASSWORD", c.Cache.Redis.Password)
	// Un valor malformado falla fuerte, igual que validate() con el YAML
	if v := strings.TrimSpace(os.Getenv("CUSTODIA_REDIS_DB")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: CUSTODIA_REDIS_DB inválido %q: %w", v, err)
		}
		c.Cache.Redis.DB = n
	}

	c.Archive.DSN = getenv("CUSTODIA_ARCHIVE_DSN", c.Archive.DSN)
	if c.Archive.DSN != "" {
		c.Archive.Enabled = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Vault.Root == "" {
		c.Vault.Root = "data/vault"
	}
	if c.Vault.VerifyBaseURL == "" {
		c.Vault.VerifyBaseURL = "https://verify.custodia.local"
	}
	if c.Signer.Issuer == "" {
		c.Signer.Issuer = "custodia"
	}
	if c.Signer.ChainID == "" {
		c.Signer.ChainID = "custodia-sim-1"
	}
	if c.Signer.ReceiptTTL == "" {
		c.Signer.ReceiptTTL = "720h" // 30 días
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "5m"
	}
	if c.Notify.SMTP.TLSMode == "" {
		c.Notify.SMTP.TLSMode = "auto"
	}
}

func (c *Config) validate() error {
	if c.Vault.Quorum < 0 {
		return fmt.Errorf("config: vault.quorum no puede ser negativo")
	}
	if len(c.Vault.Guardians) > 0 && c.Vault.Quorum > len(c.Vault.Guardians) {
		return fmt.Errorf("config: vault.quorum (%d) mayor que guardians (%d)",
			c.Vault.Quorum, len(c.Vault.Guardians))
	}
	if _, err := time.ParseDuration(c.Signer.ReceiptTTL); err != nil {
		return fmt.Errorf("config: signer.receipt_ttl inválido: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("config: cache.ttl inválido: %w", err)
	}
	if c.Notify.Enabled && c.Notify.SMTP.Host == "" {
		return fmt.Errorf("config: notify habilitado sin smtp.host")
	}
	if c.Archive.Enabled && c.Archive.DSN == "" {
		return fmt.Errorf("config: archive habilitado sin dsn")
	}
	return nil
}

// ReceiptTTL parsea la duración ya validada.
func (c *Config) ReceiptTTL() time.Duration {
	d, _ := time.ParseDuration(c.Signer.ReceiptTTL)
	return d
}

// CacheTTL parsea la duración ya validada.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
