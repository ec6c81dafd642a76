package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dropDatabas3/custodia/internal/archive"
	"github.com/dropDatabas3/custodia/internal/cache"
	"github.com/dropDatabas3/custodia/internal/config"
	httpserver "github.com/dropDatabas3/custodia/internal/http"
	"github.com/dropDatabas3/custodia/internal/http/handlers"
	"github.com/dropDatabas3/custodia/internal/http/services"
	"github.com/dropDatabas3/custodia/internal/metrics"
	"github.com/dropDatabas3/custodia/internal/notify"
	"github.com/dropDatabas3/custodia/internal/observability/logger"
	"github.com/dropDatabas3/custodia/internal/signer"
	"github.com/dropDatabas3/custodia/internal/vault"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
	)
	flag.Parse()

	if *flagEnvFile != "" && fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" && fileExists("configs/config.yaml") {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("service")

	// ─── Signer (clave HMAC persistente) ───
	sgn, err := signer.New(signer.Options{KeyPath: cfg.Signer.KeyPath})
	if err != nil {
		lg.Fatal("signer init", zap.Error(err))
	}
	if cfg.Signer.KeyPath == "" {
		lg.Warn("signer sin key_path: clave efímera, las firmas no sobreviven un restart")
	}

	// ─── Archive (índice por serial, opcional) ───
	var store archive.Store
	if cfg.Archive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err = archive.NewPG(ctx, cfg.Archive.DSN)
		cancel()
		if err != nil {
			lg.Fatal("archive init", zap.Error(err))
		}
		defer store.Close()
	}

	// ─── Vault ───
	vltOpts := vault.Options{
		Root:          cfg.Vault.Root,
		VerifyBaseURL: cfg.Vault.VerifyBaseURL,
		Guardians:     cfg.Vault.Guardians,
		Quorum:        cfg.Vault.Quorum,
	}
	if store != nil {
		vltOpts.Indexer = store
	}
	vlt, err := vault.New(vltOpts)
	if err != nil {
		lg.Fatal("vault init", zap.Error(err))
	}

	// ─── Cache ───
	cc, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Driver,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.CacheTTL(),
	})
	if err != nil {
		lg.Fatal("cache init", zap.Error(err))
	}
	defer cc.Close()

	// ─── Notify (opcional) ───
	var sender notify.Sender
	if cfg.Notify.Enabled {
		smtp := notify.NewSMTPSender(
			cfg.Notify.SMTP.Host, cfg.Notify.SMTP.Port,
			cfg.Notify.SMTP.From, cfg.Notify.SMTP.User, cfg.Notify.SMTP.Pass,
		)
		smtp.TLSMode = cfg.Notify.SMTP.TLSMode
		sender = smtp
	}
	notifier := notify.New(sender, "Custodia")

	// ─── Métricas ───
	if err := metrics.Register(nil); err != nil {
		lg.Fatal("metrics", zap.Error(err))
	}
	metricsHandler, err := httpserver.RegisterMetrics(nil)
	if err != nil {
		lg.Fatal("http metrics", zap.Error(err))
	}

	svc := &services.Certificates{
		Signer:     sgn,
		Vault:      vlt,
		Cache:      cc,
		CacheTTL:   cfg.CacheTTL(),
		Notifier:   notifier,
		Archive:    store,
		Issuer:     cfg.Signer.Issuer,
		ChainID:    cfg.Signer.ChainID,
		ReceiptTTL: cfg.ReceiptTTL(),
	}

	handler := httpserver.NewRouter(httpserver.RouterConfig{
		Certificates:       &handlers.CertificatesHandler{Svc: svc},
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	lg.Info("service up",
		zap.String("addr", cfg.Server.Addr),
		zap.String("vault_root", cfg.Vault.Root),
		zap.String("verify_base", cfg.Vault.VerifyBaseURL),
		zap.String("cache", cfg.Cache.Driver),
		zap.Bool("archive", store != nil),
		zap.Bool("notify", notifier.Enabled()),
	)

	if err := httpserver.Start(cfg.Server.Addr, handler); err != nil {
		lg.Fatal("http", zap.Error(err))
	}
}
