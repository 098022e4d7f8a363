package store

import (
	"context"
	"math/big"
	"testing"

	"github.com/turbopool/turbo-ledger/internal/ledger"
)

func TestMemory_LoadEmptyReturnsNil(t *testing.T) {
	m := NewMemory()
	snap, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap != nil {
		t.Errorf("Load on empty store = %+v, want nil", snap)
	}
}

func TestMemory_SaveAndLoad(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sess := ledger.Session{
		Identity:      "id-1",
		Tier:          2,
		DepositWei:    big.NewInt(30_000),
		EngagedAtTick: 5,
		ExpiresAtTick: 105,
		Active:        true,
	}
	pools := ledger.NewPools()
	pools.TotalIntakeDepositsWei.SetInt64(30_000)
	pools.SystemBalanceWei.SetInt64(30_000)

	if err := m.SaveEngage(ctx, sess, pools); err != nil {
		t.Fatalf("SaveEngage: %v", err)
	}
	if err := m.SavePendingReward(ctx, "id-2", big.NewInt(42), pools); err != nil {
		t.Fatalf("SavePendingReward: %v", err)
	}

	closed := sess
	closed.Active = false
	if err := m.SaveDisengage(ctx, closed, 110, pools); err != nil {
		t.Fatalf("SaveDisengage: %v", err)
	}

	cfg := ledger.DefaultConfig()
	cfg.CooldownBlocks = 7
	if err := m.SaveConfig(ctx, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	snap, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := snap.Sessions["id-1"]
	if !ok || got.Active || got.Tier != 2 || got.DepositWei.Cmp(big.NewInt(30_000)) != 0 {
		t.Errorf("loaded session = %+v, ok=%v", got, ok)
	}
	if snap.LastDisengageTick["id-1"] != 110 {
		t.Errorf("last disengage = %d, want 110", snap.LastDisengageTick["id-1"])
	}
	if snap.PendingRewardWei["id-2"].Cmp(big.NewInt(42)) != 0 {
		t.Errorf("pending = %s, want 42", snap.PendingRewardWei["id-2"])
	}
	if snap.Config.CooldownBlocks != 7 {
		t.Errorf("cooldown = %d, want 7", snap.Config.CooldownBlocks)
	}
}

func TestMemory_LoadReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	pools := ledger.NewPools()
	pools.SystemBalanceWei.SetInt64(100)
	if err := m.SavePools(ctx, pools); err != nil {
		t.Fatalf("SavePools: %v", err)
	}

	// Mutating what the caller handed in or got back must not leak
	// into the store.
	pools.SystemBalanceWei.SetInt64(999)

	first, _ := m.Load(ctx)
	first.Pools.SystemBalanceWei.SetInt64(-5)

	second, _ := m.Load(ctx)
	if second.Pools.SystemBalanceWei.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("stored balance = %s, want 100 (aliased by caller)", second.Pools.SystemBalanceWei)
	}
}
