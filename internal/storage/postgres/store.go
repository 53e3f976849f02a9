package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"simpleamm/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pools, events, metrics and state.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Options tunes how NewStore connects.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// NewStore connects to dsn, retrying the first ping with exponential backoff.
func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	attempt := 0
	err = withRetry(ctx, opts.MaxRetries, opts.RetryBackoff, connectRetryable, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("postgres ping failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store and ledger use.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ledger returns a ledger sharing the store's connection pool.
func (s *Store) Ledger() *Ledger {
	return &Ledger{db: s.pool}
}

// UpsertPools inserts or updates pool snapshots. A snapshot already advanced
// by PutEvents is left alone.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, token_a, token_b, lp_token, reserve_a, reserve_b, lp_supply, fee_basis_points, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				lp_supply = EXCLUDED.lp_supply,
				fee_basis_points = EXCLUDED.fee_basis_points,
				updated_at = now()
			WHERE pools.last_sequence = 0
		`,
			pool.Address.Hex(),
			pool.TokenA.Hex(),
			pool.TokenB.Hex(),
			pool.LPToken.Hex(),
			numeric(pool.ReserveA),
			numeric(pool.ReserveB),
			numeric(pool.LPSupply),
			int32(pool.FeeBasisPoints),
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

// PutEvents records events and advances the matching pool snapshots. Events
// already stored are skipped; a snapshot never moves back to an older sequence.
func (s *Store) PutEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", ev.Name, err)
		}
		batch.Queue(`
			INSERT INTO pool_events (
				sequence, event_name, pool_address, reserve_a, reserve_b, lp_supply, event_ts, data, created_at
			) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, now())
			ON CONFLICT (pool_address, sequence, event_name) DO NOTHING
		`,
			int64(ev.Sequence),
			ev.Name,
			ev.Pool,
			numeric(ev.ReserveA),
			numeric(ev.ReserveB),
			numeric(ev.LPSupply),
			int64(ev.Timestamp),
			data,
		)
		batch.Queue(`
			INSERT INTO pools (
				pool_address, token_a, token_b, lp_token, reserve_a, reserve_b, lp_supply, fee_basis_points, last_sequence, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				lp_supply = EXCLUDED.lp_supply,
				last_sequence = EXCLUDED.last_sequence,
				updated_at = now()
			WHERE pools.last_sequence < EXCLUDED.last_sequence
		`,
			ev.Pool,
			ev.TokenA,
			ev.TokenB,
			ev.LPToken,
			numeric(ev.ReserveA),
			numeric(ev.ReserveB),
			numeric(ev.LPSupply),
			int32(ev.Fee),
			int64(ev.Sequence),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, token_a, token_b, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_a, volume_b, fee_a, fee_b, fee_rate_a, fee_rate_b,
				reserve_a, reserve_b, last_sequence, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				fee_rate_a = EXCLUDED.fee_rate_a,
				fee_rate_b = EXCLUDED.fee_rate_b,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				last_sequence = EXCLUDED.last_sequence,
				updated_at = now()
		`,
			m.PoolAddress,
			m.TokenA,
			m.TokenB,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.VolumeA,
			m.VolumeB,
			m.FeeA,
			m.FeeB,
			m.FeeRateA,
			m.FeeRateB,
			m.ReserveA,
			m.ReserveB,
			int64(m.LastSequence),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPools returns every stored pool snapshot.
func (s *Store) LoadPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address, token_a, token_b, lp_token, reserve_a::text, reserve_b::text, lp_supply::text, fee_basis_points
		FROM pools ORDER BY pool_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var address, tokenA, tokenB, lpToken, reserveA, reserveB, supply string
		var fee int32
		if err := rows.Scan(&address, &tokenA, &tokenB, &lpToken, &reserveA, &reserveB, &supply, &fee); err != nil {
			return nil, err
		}
		pool := model.Pool{
			Address:        common.HexToAddress(address),
			TokenA:         common.HexToAddress(tokenA),
			TokenB:         common.HexToAddress(tokenB),
			LPToken:        common.HexToAddress(lpToken),
			FeeBasisPoints: uint16(fee),
		}
		if pool.ReserveA, err = strconv.ParseUint(reserveA, 10, 64); err != nil {
			return nil, fmt.Errorf("pool %s reserve_a: %w", address, err)
		}
		if pool.ReserveB, err = strconv.ParseUint(reserveB, 10, 64); err != nil {
			return nil, fmt.Errorf("pool %s reserve_b: %w", address, err)
		}
		if pool.LPSupply, err = strconv.ParseUint(supply, 10, 64); err != nil {
			return nil, fmt.Errorf("pool %s lp_supply: %w", address, err)
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// LastSequence returns the highest stored event sequence, or 0.
func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM pool_events`)
	if err := row.Scan(&last); err != nil {
		return 0, err
	}
	return uint64(last), nil
}

// LoadState returns last_processed for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM amm_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts last_processed for a name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO amm_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(last))
	return err
}

func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}
