package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/turbopool/turbo-ledger/internal/ledger"
)

func TestSetPaused_GatesIntakeOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deposit := requiredDeposit(t, 0)

	mustEngage(t, f, alice, 0, deposit, 0)
	mustSetPaused(t, f, true)

	if !f.led.IsPaused() {
		t.Fatal("IsPaused = false after SetPaused(true)")
	}
	if err := f.led.Engage(ctx, bob, 0, deposit, 1); !errors.Is(err, ledger.ErrIntakePaused) {
		t.Errorf("Engage while paused error = %v, want ErrIntakePaused", err)
	}

	// Live sessions keep running and can still disengage.
	expires := expiryOf(t, f, alice)
	if _, err := f.led.Disengage(ctx, alice, expires); err != nil {
		t.Errorf("Disengage while paused: %v", err)
	}

	mustSetPaused(t, f, false)
	if f.led.IsPaused() {
		t.Error("IsPaused = true after SetPaused(false)")
	}
}

func TestConfigMutations_ControllerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.led.SetPaused(ctx, alice, true); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("SetPaused error = %v, want ErrUnauthorized", err)
	}
	if err := f.led.SetCooldown(ctx, alice, 10); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("SetCooldown error = %v, want ErrUnauthorized", err)
	}
	if err := f.led.SetTierMultiplier(ctx, alice, 0, 9_000); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("SetTierMultiplier error = %v, want ErrUnauthorized", err)
	}
	if f.led.IsPaused() {
		t.Error("rejected SetPaused still flipped the flag")
	}
}

func TestSetTierMultiplier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.led.SetTierMultiplier(ctx, controller, ledger.MaxTier+1, 12_000); !errors.Is(err, ledger.ErrTierOutOfRange) {
		t.Fatalf("SetTierMultiplier out of range error = %v, want ErrTierOutOfRange", err)
	}

	if err := f.led.SetTierMultiplier(ctx, controller, 2, 55_000); err != nil {
		t.Fatalf("SetTierMultiplier: %v", err)
	}
	if got, _ := f.led.TierMultiplier(2); got != 55_000 {
		t.Errorf("TierMultiplier(2) = %d, want 55000", got)
	}

	// A live session reports the updated multiplier immediately.
	deposit := requiredDeposit(t, 2)
	mustEngage(t, f, alice, 2, deposit, 100)
	if got := f.led.CurrentMultiplier(alice, 101); got != 55_000 {
		t.Errorf("CurrentMultiplier = %d, want 55000", got)
	}
}

func TestSetCooldown_AppliesToRunningCooldowns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deposit := requiredDeposit(t, 0)

	mustEngage(t, f, alice, 0, deposit, 0)
	expires := expiryOf(t, f, alice)
	if _, err := f.led.Disengage(ctx, alice, expires); err != nil {
		t.Fatalf("Disengage: %v", err)
	}

	if err := f.led.SetCooldown(ctx, controller, 10); err != nil {
		t.Fatalf("SetCooldown: %v", err)
	}
	if got := f.led.BlocksUntilCanEngage(alice, expires+4); got != 6 {
		t.Errorf("BlocksUntilCanEngage = %d under shortened cooldown, want 6", got)
	}
	if !f.led.CanEngage(alice, expires+10) {
		t.Error("CanEngage false after shortened cooldown elapsed")
	}
}

func TestConfigEventsEmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.led.SetCooldown(ctx, controller, 123); err != nil {
		t.Fatalf("SetCooldown: %v", err)
	}
	if err := f.led.SetTierMultiplier(ctx, controller, 1, 20_000); err != nil {
		t.Fatalf("SetTierMultiplier: %v", err)
	}

	kinds := f.notifier.kinds()
	if len(kinds) != 2 || kinds[0] != ledger.EventConfigUpdated || kinds[1] != ledger.EventConfigUpdated {
		t.Errorf("events = %v, want two config_updated", kinds)
	}
}
