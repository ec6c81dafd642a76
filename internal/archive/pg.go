package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/custodia/internal/vault"
)

// PGStore implementa Store sobre Postgres (pgxpool).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPG abre el pool, verifica la conexión y asegura el schema.
func NewPG(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS certificate_index (
			dals_serial  TEXT PRIMARY KEY,
			worker_id    TEXT NOT NULL,
			payload_hash TEXT NOT NULL,
			minted_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			summary      JSONB NOT NULL
		)`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("archive: ensure schema: %w", err)
	}
	return nil
}

// IndexIssuance upsertea el summary: mismo last-write-wins que el vault.
func (s *PGStore) IndexIssuance(ctx context.Context, sum vault.CertificateSummary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("archive: marshal summary: %w", err)
	}

	const q = `
		INSERT INTO certificate_index (dals_serial, worker_id, payload_hash, minted_at, summary)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (dals_serial)
		DO UPDATE SET worker_id    = EXCLUDED.worker_id,
					  payload_hash = EXCLUDED.payload_hash,
					  minted_at    = NOW(),
					  summary      = EXCLUDED.summary`

	_, err = s.pool.Exec(ctx, q, sum.Serial, sum.WorkerID, sum.Signature.PayloadHash, b)
	return err
}

// LookupSerial retorna el summary indexado, o (nil, nil) si no existe.
func (s *PGStore) LookupSerial(ctx context.Context, serial string) (*vault.CertificateSummary, error) {
	const q = `SELECT summary FROM certificate_index WHERE dals_serial = $1`

	var raw []byte
	if err := s.pool.QueryRow(ctx, q, serial).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var sum vault.CertificateSummary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, fmt.Errorf("archive: decode summary: %w", err)
	}
	return &sum, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}
