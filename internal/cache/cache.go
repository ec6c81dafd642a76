// Package cache provee una abstracción de caching con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// El HTTP layer lo usa como read cache de summaries por serial; el vault
// en disco sigue siendo la autoridad.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Stats retorna estadísticas del cache.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del cache.
type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys

	// DefaultTTL aplica cuando Set recibe ttl 0 en el backend de memoria.
	DefaultTTL time.Duration
}

// Errores de cache.
var (
	ErrNotFound      = errors.New("cache: key not found")
	ErrUnknownDriver = errors.New("cache: unknown driver")
)

// New construye el Client según cfg.Driver. Driver vacío ⇒ memory.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, ErrUnknownDriver
	}
}
