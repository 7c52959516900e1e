package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapRouter/internal/model"
)

// Store provides Postgres persistence for discovered pools.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SavePools inserts or updates pool records.
func (s *Store) SavePools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token0, token1, fee, tick_spacing,
				liquidity, sqrt_price_x96, tick, first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				liquidity = EXCLUDED.liquidity,
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				tick = EXCLUDED.tick,
				first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			model.NormalizeAddress(pool.Address),
			model.NormalizeAddress(pool.Token0),
			model.NormalizeAddress(pool.Token1),
			pool.Fee,
			pool.TickSpacing,
			pool.Liquidity,
			pool.SqrtPriceX96,
			pool.Tick,
			int64(pool.FirstSeenBlock),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPools returns all pool records.
func (s *Store) LoadPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, pool_address, token0, token1, fee, tick_spacing,
		       liquidity, sqrt_price_x96, tick, first_seen_block
		FROM pools
		ORDER BY pool_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPools(rows)
}

// LoadPoolsForTokens returns pools where either side of the pair is in the
// token set.
func (s *Store) LoadPoolsForTokens(ctx context.Context, tokens []string) ([]model.Pool, error) {
	normalized := make([]string, 0, len(tokens))
	for _, token := range tokens {
		normalized = append(normalized, model.NormalizeAddress(token))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, pool_address, token0, token1, fee, tick_spacing,
		       liquidity, sqrt_price_x96, tick, first_seen_block
		FROM pools
		WHERE token0 = ANY($1) OR token1 = ANY($1)
		ORDER BY pool_address
	`, normalized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPools(rows)
}

func scanPools(rows pgx.Rows) ([]model.Pool, error) {
	pools := make([]model.Pool, 0)
	for rows.Next() {
		var pool model.Pool
		var chainID, firstSeen int64
		if err := rows.Scan(
			&chainID,
			&pool.Address,
			&pool.Token0,
			&pool.Token1,
			&pool.Fee,
			&pool.TickSpacing,
			&pool.Liquidity,
			&pool.SqrtPriceX96,
			&pool.Tick,
			&firstSeen,
		); err != nil {
			return nil, err
		}
		pool.ChainID = uint64(chainID)
		pool.FirstSeenBlock = uint64(firstSeen)
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}
