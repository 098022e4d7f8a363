package ledger

import (
	"math"
	"math/big"
)

// NeverEngageable is the sentinel returned by BlocksUntilCanEngage while
// a session is active: no amount of waiting helps until disengage.
const NeverEngageable uint64 = math.MaxUint64

// Queries take the lock for a consistent read but do not raise the
// in-call flag: reads during another operation's transfer window observe
// fully settled state.

// CanEngage reports whether identity could start a session right now as
// far as session and cooldown state are concerned (paused/tier/deposit
// checks still apply at engage time). An identity that never disengaged
// has no cooldown constraint.
func (l *Ledger) CanEngage(identity string, now uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.sessions[identity]; ok && s.Active {
		return false
	}
	return l.cooldownElapsed(identity, now)
}

// BlocksUntilCanEngage returns how many ticks remain before identity may
// engage again: NeverEngageable while a session is active, 0 when no
// cooldown applies or it has elapsed, the remaining tick count otherwise.
func (l *Ledger) BlocksUntilCanEngage(identity string, now uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.sessions[identity]; ok && s.Active {
		return NeverEngageable
	}
	last, ok := l.lastDisengage[identity]
	if !ok || last == 0 {
		return 0
	}
	readyAt := last + l.cfg.CooldownBlocks
	if now >= readyAt {
		return 0
	}
	return readyAt - now
}

// CurrentMultiplier returns identity's effective reward multiplier in
// basis points: the configured tier multiplier while a session is live,
// the neutral 10000 otherwise (no session, deactivated, or past expiry).
func (l *Ledger) CurrentMultiplier(identity string, now uint64) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[identity]
	if !ok || !s.Active || s.Expired(now) {
		return NeutralMultiplierBps
	}
	return l.cfg.TierMultiplierBps[s.Tier]
}

// GetSession returns a snapshot of identity's last session record, which
// may be deactivated or stale. The second return is false when the
// identity never engaged. Callers must check Active.
func (l *Ledger) GetSession(identity string) (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[identity]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// PendingReward returns identity's claimable reward balance.
func (l *Ledger) PendingReward(identity string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.pendingOf(identity))
}

// Pools returns a snapshot of the pool counters.
func (l *Ledger) Pools() Pools {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pools.clone()
}

// IsPaused reports whether session intake is paused.
func (l *Ledger) IsPaused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.Paused
}

// ConfigSnapshot returns a copy of the controller configuration.
func (l *Ledger) ConfigSnapshot() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// TierMultiplier returns the configured multiplier for a tier, 0 when
// the tier is disabled.
func (l *Ledger) TierMultiplier(tier uint8) (uint32, error) {
	if tier > MaxTier {
		return 0, ErrTierOutOfRange
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.TierMultiplierBps[tier], nil
}
