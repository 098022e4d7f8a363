// Package store provides durable storage for the turbo ledger. The
// production implementation is PostgreSQL-backed (one transaction per
// ledger mutation, so every write lands as an atomic unit); a Memory
// implementation backs tests and single-node experiments.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/turbopool/turbo-ledger/internal/ledger"
)

// Postgres persists ledger state in PostgreSQL. Wei amounts are stored
// as NUMERIC(78,0) and travel through strings to keep full precision.
type Postgres struct {
	db *sql.DB
}

// NewPostgres returns a store backed by the given database handle. The
// schema must already be migrated; see Migrate.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Load reads the full persisted state. Returns nil when nothing has
// ever been written, so a fresh ledger starts from code defaults.
// Partially-written stores (config without pools, etc.) overlay the
// defaults with whatever rows exist.
func (p *Postgres) Load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{
		Sessions:          make(map[string]ledger.Session),
		LastDisengageTick: make(map[string]uint64),
		PendingRewardWei:  make(map[string]*big.Int),
		Pools:             ledger.NewPools(),
		Config:            ledger.DefaultConfig(),
	}
	found := false

	rows, err := p.db.QueryContext(ctx, `
		SELECT identity, tier, deposit_wei::text, engaged_at_tick, expires_at_tick, active
		FROM turbo_sessions`)
	if err != nil {
		return nil, fmt.Errorf("store: load sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s       ledger.Session
			deposit string
		)
		if err := rows.Scan(&s.Identity, &s.Tier, &deposit, &s.EngagedAtTick, &s.ExpiresAtTick, &s.Active); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		if s.DepositWei, err = parseWei(deposit); err != nil {
			return nil, fmt.Errorf("store: session %s: %w", s.Identity, err)
		}
		snap.Sessions[s.Identity] = s
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load sessions: %w", err)
	}

	cdRows, err := p.db.QueryContext(ctx, `SELECT identity, last_disengage_tick FROM turbo_cooldowns`)
	if err != nil {
		return nil, fmt.Errorf("store: load cooldowns: %w", err)
	}
	defer cdRows.Close()
	for cdRows.Next() {
		var (
			identity string
			tick     uint64
		)
		if err := cdRows.Scan(&identity, &tick); err != nil {
			return nil, fmt.Errorf("store: scan cooldown: %w", err)
		}
		snap.LastDisengageTick[identity] = tick
		found = true
	}
	if err := cdRows.Err(); err != nil {
		return nil, fmt.Errorf("store: load cooldowns: %w", err)
	}

	prRows, err := p.db.QueryContext(ctx, `SELECT identity, amount_wei::text FROM turbo_pending_rewards`)
	if err != nil {
		return nil, fmt.Errorf("store: load pending rewards: %w", err)
	}
	defer prRows.Close()
	for prRows.Next() {
		var identity, amount string
		if err := prRows.Scan(&identity, &amount); err != nil {
			return nil, fmt.Errorf("store: scan pending reward: %w", err)
		}
		wei, err := parseWei(amount)
		if err != nil {
			return nil, fmt.Errorf("store: pending reward %s: %w", identity, err)
		}
		snap.PendingRewardWei[identity] = wei
		found = true
	}
	if err := prRows.Err(); err != nil {
		return nil, fmt.Errorf("store: load pending rewards: %w", err)
	}

	var intake, reward, accrued, balance string
	err = p.db.QueryRowContext(ctx, `
		SELECT total_intake_deposits_wei::text, total_reward_pool_wei::text,
		       protocol_accrued_wei::text, system_balance_wei::text
		FROM turbo_pools WHERE id = 1`).Scan(&intake, &reward, &accrued, &balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh store, keep zeroed pools
	case err != nil:
		return nil, fmt.Errorf("store: load pools: %w", err)
	default:
		if snap.Pools, err = parsePools(intake, reward, accrued, balance); err != nil {
			return nil, err
		}
		found = true
	}

	var (
		paused   bool
		cooldown uint64
	)
	err = p.db.QueryRowContext(ctx, `SELECT paused, cooldown_blocks FROM turbo_config WHERE id = 1`).
		Scan(&paused, &cooldown)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh store, keep default config
	case err != nil:
		return nil, fmt.Errorf("store: load config: %w", err)
	default:
		snap.Config.Paused = paused
		snap.Config.CooldownBlocks = cooldown
		found = true
	}

	tcRows, err := p.db.QueryContext(ctx, `SELECT tier, multiplier_bps FROM turbo_tier_config`)
	if err != nil {
		return nil, fmt.Errorf("store: load tier config: %w", err)
	}
	defer tcRows.Close()
	for tcRows.Next() {
		var (
			tier uint8
			bps  uint32
		)
		if err := tcRows.Scan(&tier, &bps); err != nil {
			return nil, fmt.Errorf("store: scan tier config: %w", err)
		}
		if tier <= ledger.MaxTier {
			snap.Config.TierMultiplierBps[tier] = bps
		}
		found = true
	}
	if err := tcRows.Err(); err != nil {
		return nil, fmt.Errorf("store: load tier config: %w", err)
	}

	if !found {
		return nil, nil
	}
	return snap, nil
}

// SaveEngage upserts the engaged session and the pool counters in one
// transaction.
func (p *Postgres) SaveEngage(ctx context.Context, s ledger.Session, pools ledger.Pools) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertSession(ctx, tx, s); err != nil {
			return err
		}
		return upsertPools(ctx, tx, pools)
	})
}

// SaveDisengage updates the deactivated session, the identity's
// last-disengage tick and the pool counters in one transaction.
func (p *Postgres) SaveDisengage(ctx context.Context, s ledger.Session, lastDisengageTick uint64, pools ledger.Pools) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertSession(ctx, tx, s); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turbo_cooldowns (identity, last_disengage_tick)
			VALUES ($1, $2)
			ON CONFLICT (identity) DO UPDATE SET last_disengage_tick = EXCLUDED.last_disengage_tick`,
			s.Identity, lastDisengageTick); err != nil {
			return fmt.Errorf("store: upsert cooldown: %w", err)
		}
		return upsertPools(ctx, tx, pools)
	})
}

// SavePendingReward upserts one identity's pending reward together with
// the pool counters.
func (p *Postgres) SavePendingReward(ctx context.Context, identity string, pendingWei *big.Int, pools ledger.Pools) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turbo_pending_rewards (identity, amount_wei)
			VALUES ($1, $2::numeric)
			ON CONFLICT (identity) DO UPDATE SET amount_wei = EXCLUDED.amount_wei`,
			identity, pendingWei.String()); err != nil {
			return fmt.Errorf("store: upsert pending reward: %w", err)
		}
		return upsertPools(ctx, tx, pools)
	})
}

// SavePools persists the pool counters alone.
func (p *Postgres) SavePools(ctx context.Context, pools ledger.Pools) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		return upsertPools(ctx, tx, pools)
	})
}

// SaveConfig persists the controller configuration, tier multipliers
// included, in one transaction.
func (p *Postgres) SaveConfig(ctx context.Context, cfg ledger.Config) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turbo_config (id, paused, cooldown_blocks)
			VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET paused = EXCLUDED.paused, cooldown_blocks = EXCLUDED.cooldown_blocks`,
			cfg.Paused, cfg.CooldownBlocks); err != nil {
			return fmt.Errorf("store: upsert config: %w", err)
		}
		for tier, bps := range cfg.TierMultiplierBps {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO turbo_tier_config (tier, multiplier_bps)
				VALUES ($1, $2)
				ON CONFLICT (tier) DO UPDATE SET multiplier_bps = EXCLUDED.multiplier_bps`,
				tier, bps); err != nil {
				return fmt.Errorf("store: upsert tier %d config: %w", tier, err)
			}
		}
		return nil
	})
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

func upsertSession(ctx context.Context, tx *sql.Tx, s ledger.Session) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO turbo_sessions (identity, tier, deposit_wei, engaged_at_tick, expires_at_tick, active)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT (identity) DO UPDATE SET
			tier = EXCLUDED.tier,
			deposit_wei = EXCLUDED.deposit_wei,
			engaged_at_tick = EXCLUDED.engaged_at_tick,
			expires_at_tick = EXCLUDED.expires_at_tick,
			active = EXCLUDED.active`,
		s.Identity, s.Tier, s.DepositWei.String(), s.EngagedAtTick, s.ExpiresAtTick, s.Active)
	if err != nil {
		return fmt.Errorf("store: upsert session: %w", err)
	}
	return nil
}

func upsertPools(ctx context.Context, tx *sql.Tx, pools ledger.Pools) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO turbo_pools (id, total_intake_deposits_wei, total_reward_pool_wei, protocol_accrued_wei, system_balance_wei)
		VALUES (1, $1::numeric, $2::numeric, $3::numeric, $4::numeric)
		ON CONFLICT (id) DO UPDATE SET
			total_intake_deposits_wei = EXCLUDED.total_intake_deposits_wei,
			total_reward_pool_wei = EXCLUDED.total_reward_pool_wei,
			protocol_accrued_wei = EXCLUDED.protocol_accrued_wei,
			system_balance_wei = EXCLUDED.system_balance_wei`,
		pools.TotalIntakeDepositsWei.String(),
		pools.TotalRewardPoolWei.String(),
		pools.ProtocolAccruedWei.String(),
		pools.SystemBalanceWei.String())
	if err != nil {
		return fmt.Errorf("store: upsert pools: %w", err)
	}
	return nil
}

func parsePools(intake, reward, accrued, balance string) (ledger.Pools, error) {
	pools := ledger.NewPools()
	var err error
	if pools.TotalIntakeDepositsWei, err = parseWei(intake); err != nil {
		return pools, fmt.Errorf("store: pools intake: %w", err)
	}
	if pools.TotalRewardPoolWei, err = parseWei(reward); err != nil {
		return pools, fmt.Errorf("store: pools reward: %w", err)
	}
	if pools.ProtocolAccruedWei, err = parseWei(accrued); err != nil {
		return pools, fmt.Errorf("store: pools accrued: %w", err)
	}
	if pools.SystemBalanceWei, err = parseWei(balance); err != nil {
		return pools, fmt.Errorf("store: pools balance: %w", err)
	}
	return pools, nil
}

func parseWei(s string) (*big.Int, error) {
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("store: malformed wei value %q", s)
	}
	return wei, nil
}
