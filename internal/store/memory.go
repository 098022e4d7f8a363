package store

import (
	"context"
	"math/big"
	"sync"

	"github.com/turbopool/turbo-ledger/internal/ledger"
)

// Memory is an in-process ledger.Store used by tests and single-node
// experiments. It keeps deep copies of everything it is handed so
// callers cannot alias its state.
type Memory struct {
	mu   sync.Mutex
	snap *ledger.Snapshot
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements ledger.Store.
func (m *Memory) Load(ctx context.Context) (*ledger.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	return cloneSnapshot(m.snap), nil
}

// SaveEngage implements ledger.Store.
func (m *Memory) SaveEngage(ctx context.Context, s ledger.Session, pools ledger.Pools) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.ensure()
	snap.Sessions[s.Identity] = cloneSession(s)
	snap.Pools = clonePools(pools)
	return nil
}

// SaveDisengage implements ledger.Store.
func (m *Memory) SaveDisengage(ctx context.Context, s ledger.Session, lastDisengageTick uint64, pools ledger.Pools) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.ensure()
	snap.Sessions[s.Identity] = cloneSession(s)
	snap.LastDisengageTick[s.Identity] = lastDisengageTick
	snap.Pools = clonePools(pools)
	return nil
}

// SavePendingReward implements ledger.Store.
func (m *Memory) SavePendingReward(ctx context.Context, identity string, pendingWei *big.Int, pools ledger.Pools) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.ensure()
	snap.PendingRewardWei[identity] = new(big.Int).Set(pendingWei)
	snap.Pools = clonePools(pools)
	return nil
}

// SavePools implements ledger.Store.
func (m *Memory) SavePools(ctx context.Context, pools ledger.Pools) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure().Pools = clonePools(pools)
	return nil
}

// SaveConfig implements ledger.Store.
func (m *Memory) SaveConfig(ctx context.Context, cfg ledger.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure().Config = cfg
	return nil
}

func (m *Memory) ensure() *ledger.Snapshot {
	if m.snap == nil {
		m.snap = &ledger.Snapshot{
			Sessions:          make(map[string]ledger.Session),
			LastDisengageTick: make(map[string]uint64),
			PendingRewardWei:  make(map[string]*big.Int),
			Pools:             ledger.NewPools(),
			Config:            ledger.DefaultConfig(),
		}
	}
	return m.snap
}

func cloneSnapshot(snap *ledger.Snapshot) *ledger.Snapshot {
	out := &ledger.Snapshot{
		Sessions:          make(map[string]ledger.Session, len(snap.Sessions)),
		LastDisengageTick: make(map[string]uint64, len(snap.LastDisengageTick)),
		PendingRewardWei:  make(map[string]*big.Int, len(snap.PendingRewardWei)),
		Pools:             clonePools(snap.Pools),
		Config:            snap.Config,
	}
	for id, s := range snap.Sessions {
		out.Sessions[id] = cloneSession(s)
	}
	for id, tick := range snap.LastDisengageTick {
		out.LastDisengageTick[id] = tick
	}
	for id, wei := range snap.PendingRewardWei {
		out.PendingRewardWei[id] = new(big.Int).Set(wei)
	}
	return out
}

func cloneSession(s ledger.Session) ledger.Session {
	c := s
	if s.DepositWei != nil {
		c.DepositWei = new(big.Int).Set(s.DepositWei)
	}
	return c
}

func clonePools(p ledger.Pools) ledger.Pools {
	return ledger.Pools{
		TotalIntakeDepositsWei: new(big.Int).Set(p.TotalIntakeDepositsWei),
		TotalRewardPoolWei:     new(big.Int).Set(p.TotalRewardPoolWei),
		ProtocolAccruedWei:     new(big.Int).Set(p.ProtocolAccruedWei),
		SystemBalanceWei:       new(big.Int).Set(p.SystemBalanceWei),
	}
}
