package ledger

import (
	"context"
	"fmt"
)

// SetPaused opens or closes session intake. Controller only. Pausing
// never touches live sessions; it only blocks new engagements.
func (l *Ledger) SetPaused(ctx context.Context, caller string, paused bool) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if !l.auth.IsController(caller) {
		return fmt.Errorf("ledger: set paused: %w", ErrUnauthorized)
	}

	cfg := l.cfg
	cfg.Paused = paused

	if err := l.store.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("ledger: set paused: persist: %w", err)
	}
	l.cfg = cfg

	l.notifier.Emit(Event{
		Kind:    EventConfigUpdated,
		Setting: "paused",
		Value:   boolValue(paused),
	})
	return nil
}

// SetCooldown replaces the post-disengage cooldown, in ticks.
// Controller only. Applies to disengages from this point on as well as
// cooldowns already running.
func (l *Ledger) SetCooldown(ctx context.Context, caller string, ticks uint64) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if !l.auth.IsController(caller) {
		return fmt.Errorf("ledger: set cooldown: %w", ErrUnauthorized)
	}

	cfg := l.cfg
	cfg.CooldownBlocks = ticks

	if err := l.store.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("ledger: set cooldown: persist: %w", err)
	}
	l.cfg = cfg

	l.notifier.Emit(Event{
		Kind:    EventConfigUpdated,
		Setting: "cooldown",
		Value:   ticks,
	})
	return nil
}

// SetTierMultiplier replaces one tier's reward multiplier, in basis
// points. Controller only. Setting 0 disables the tier: engagement on
// it fails ErrInvalidTierConfig until a nonzero multiplier is restored.
// Sessions already running on the tier keep going; only their reported
// multiplier changes.
func (l *Ledger) SetTierMultiplier(ctx context.Context, caller string, tier uint8, bps uint32) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if !l.auth.IsController(caller) {
		return fmt.Errorf("ledger: set tier multiplier: %w", ErrUnauthorized)
	}
	if tier > MaxTier {
		return fmt.Errorf("ledger: set tier multiplier: tier %d: %w", tier, ErrTierOutOfRange)
	}

	cfg := l.cfg
	cfg.TierMultiplierBps[tier] = bps

	if err := l.store.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("ledger: set tier multiplier: persist: %w", err)
	}
	l.cfg = cfg

	l.notifier.Emit(Event{
		Kind:    EventConfigUpdated,
		Setting: "tier_multiplier",
		Tier:    tier,
		Value:   uint64(bps),
	})
	return nil
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
