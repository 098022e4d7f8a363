package ledger

import (
	"context"
	"math/big"
)

// Session is one identity's boost session. A record is created on engage
// and deactivated (never deleted) on disengage, so the last session stays
// queryable afterwards. Callers must check Active before trusting the
// rest of the fields.
type Session struct {
	Identity      string
	Tier          uint8
	DepositWei    *big.Int
	EngagedAtTick uint64
	ExpiresAtTick uint64
	Active        bool
}

// Expired reports whether the session is past its expiry tick. An
// expired session still counts as active until it is disengaged.
func (s Session) Expired(now uint64) bool {
	return now >= s.ExpiresAtTick
}

func (s Session) clone() Session {
	c := s
	if s.DepositWei != nil {
		c.DepositWei = new(big.Int).Set(s.DepositWei)
	}
	return c
}

// Pools holds the ledger-wide wei counters.
//
// TotalIntakeDepositsWei always equals the sum of DepositWei over the
// currently active sessions. TotalRewardPoolWei is advisory: claims are
// checked against SystemBalanceWei, not against it, and never debit it.
// SystemBalanceWei mirrors the value actually held by the hosting
// account: deposits and pool funding flow in, refunds, claims and fee
// withdrawals flow out.
type Pools struct {
	TotalIntakeDepositsWei *big.Int
	TotalRewardPoolWei     *big.Int
	ProtocolAccruedWei     *big.Int
	SystemBalanceWei       *big.Int
}

// NewPools returns zeroed pool counters.
func NewPools() Pools {
	return Pools{
		TotalIntakeDepositsWei: new(big.Int),
		TotalRewardPoolWei:     new(big.Int),
		ProtocolAccruedWei:     new(big.Int),
		SystemBalanceWei:       new(big.Int),
	}
}

func (p Pools) clone() Pools {
	return Pools{
		TotalIntakeDepositsWei: new(big.Int).Set(p.TotalIntakeDepositsWei),
		TotalRewardPoolWei:     new(big.Int).Set(p.TotalRewardPoolWei),
		ProtocolAccruedWei:     new(big.Int).Set(p.ProtocolAccruedWei),
		SystemBalanceWei:       new(big.Int).Set(p.SystemBalanceWei),
	}
}

// Config is the controller-owned ledger configuration.
type Config struct {
	Paused            bool
	CooldownBlocks    uint64
	TierMultiplierBps [MaxTier + 1]uint32
}

// DefaultConfig returns the configuration a fresh ledger starts with.
func DefaultConfig() Config {
	return Config{
		Paused:            false,
		CooldownBlocks:    DefaultCooldownBlocks,
		TierMultiplierBps: DefaultTierMultiplierBps,
	}
}

// Snapshot is the full durable state of a ledger, as loaded from and
// written to a Store.
type Snapshot struct {
	Sessions          map[string]Session
	LastDisengageTick map[string]uint64
	PendingRewardWei  map[string]*big.Int
	Pools             Pools
	Config            Config
}

// Store is the durability boundary. Every mutating ledger operation
// writes through before the in-memory state is considered settled; a
// store error fails the operation with no visible mutation. Each method
// must apply its writes as one atomic unit.
type Store interface {
	// Load returns the complete persisted state, or nil when the store
	// has never been written (a fresh ledger starts from defaults).
	Load(ctx context.Context) (*Snapshot, error)

	// SaveEngage persists a newly engaged session together with the
	// updated pool counters.
	SaveEngage(ctx context.Context, s Session, pools Pools) error

	// SaveDisengage persists a deactivated session, the identity's
	// last-disengage tick and the updated pool counters.
	SaveDisengage(ctx context.Context, s Session, lastDisengageTick uint64, pools Pools) error

	// SavePendingReward persists one identity's pending reward balance
	// together with the pool counters (claims move the system balance).
	SavePendingReward(ctx context.Context, identity string, pendingWei *big.Int, pools Pools) error

	// SavePools persists the pool counters alone (funding, withdrawal).
	SavePools(ctx context.Context, pools Pools) error

	// SaveConfig persists the controller configuration.
	SaveConfig(ctx context.Context, cfg Config) error
}

// Transferor moves value out of the ledger to an external account. It is
// an untrusted boundary: the call may fail, hang until its deadline, or
// attempt to re-enter the ledger (which the re-entrancy guard rejects).
type Transferor interface {
	Transfer(ctx context.Context, to string, amountWei *big.Int) error
}

// Authority decides who may perform controller-only operations.
// Injected so tests and deployments choose their own policy.
type Authority interface {
	IsController(identity string) bool
}

// StaticAuthority recognizes exactly one controller identity.
type StaticAuthority struct {
	Controller string
}

// IsController implements Authority. An empty configured controller
// matches nobody.
func (a StaticAuthority) IsController(identity string) bool {
	return a.Controller != "" && identity == a.Controller
}
