// Package ledger implements the turbo boost session ledger: tiered
// time-boxed sessions entered by depositing value, a cooldown between
// sessions, a shared reward pool and a protocol fee skimmed off every
// deposit.
//
// All state lives in one Ledger struct and is written through to a Store
// on every mutation, so a restarted process resumes exactly where the
// previous one stopped. Mutating operations are serialized by a single
// lock; an in-call flag covers each operation end to end (including the
// outbound value-transfer leg, during which the lock itself is released)
// and any call arriving while the flag is set fails ErrReentrancyRejected.
//
// Ordering contract: validation errors are raised before any state
// mutation. ErrTransferFailed is the one exception — disengage, claim and
// fee withdrawal settle the ledger first and pay out last, so a failed
// transfer leaves the session/reward settled with the payout owed
// out-of-band. Callers that need compensation must handle it themselves.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/turbopool/turbo-ledger/internal/metrics"
)

// Deps wires the ledger's external collaborators.
type Deps struct {
	Store    Store
	Transfer Transferor
	Auth     Authority
	Notifier Notifier // optional; nil discards events

	// ExhaustSink receives withdrawn protocol fees.
	ExhaustSink string
}

// Ledger owns all per-identity session records, pending rewards, the
// pool counters and the controller configuration.
type Ledger struct {
	mu     sync.Mutex
	inCall bool

	sessions      map[string]Session
	lastDisengage map[string]uint64
	pending       map[string]*big.Int
	pools         Pools
	cfg           Config

	store    Store
	transfer Transferor
	auth     Authority
	notifier Notifier
	sink     string
}

// New loads the persisted snapshot from deps.Store (falling back to
// defaults on an empty store) and returns a ready ledger.
func New(ctx context.Context, deps Deps) (*Ledger, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("ledger: nil store")
	}
	if deps.Transfer == nil {
		return nil, fmt.Errorf("ledger: nil transferor")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("ledger: nil authority")
	}
	if deps.ExhaustSink == "" {
		return nil, fmt.Errorf("ledger: exhaust sink: %w", ErrZeroIdentity)
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}

	snap, err := deps.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load snapshot: %w", err)
	}

	l := &Ledger{
		sessions:      make(map[string]Session),
		lastDisengage: make(map[string]uint64),
		pending:       make(map[string]*big.Int),
		pools:         NewPools(),
		cfg:           DefaultConfig(),
		store:         deps.Store,
		transfer:      deps.Transfer,
		auth:          deps.Auth,
		notifier:      deps.Notifier,
		sink:          deps.ExhaustSink,
	}

	if snap != nil {
		for id, s := range snap.Sessions {
			l.sessions[id] = s.clone()
		}
		for id, tick := range snap.LastDisengageTick {
			l.lastDisengage[id] = tick
		}
		for id, wei := range snap.PendingRewardWei {
			l.pending[id] = new(big.Int).Set(wei)
		}
		l.pools = snap.Pools.clone()
		l.cfg = snap.Config
	}

	l.publishPoolGauges()
	metrics.SessionsActive.Set(float64(l.activeCount()))
	return l, nil
}

// ---------------------------------------------------------------------------
// Call guard
// ---------------------------------------------------------------------------

// enter acquires the ledger for a mutating operation: it takes the lock
// and raises the in-call flag. A caller that finds the flag already
// raised is re-entering (or racing the transfer window of) another
// mutating call and is rejected.
func (l *Ledger) enter() error {
	l.mu.Lock()
	if l.inCall {
		l.mu.Unlock()
		return ErrReentrancyRejected
	}
	l.inCall = true
	return nil
}

// exit lowers the in-call flag and releases the lock. Deferred on every
// path out of a mutating operation.
func (l *Ledger) exit() {
	l.inCall = false
	l.mu.Unlock()
}

// payout invokes the external transferor with the lock released but the
// in-call flag still raised, so a re-entrant call from the transfer
// callback hits the guard instead of deadlocking. State must already be
// settled before calling payout.
func (l *Ledger) payout(ctx context.Context, to string, amountWei *big.Int) error {
	l.mu.Unlock()
	err := l.transfer.Transfer(ctx, to, amountWei)
	l.mu.Lock()
	if err != nil {
		metrics.TransferFailuresTotal.Inc()
		return fmt.Errorf("ledger: transfer %s wei to %s: %v: %w", amountWei, to, err, ErrTransferFailed)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Session state machine
// ---------------------------------------------------------------------------

// Engage opens a boost session for identity at the given tier, consuming
// the full attached value as the deposit. The value is split on arrival:
// the protocol share accrues for withdrawal to the exhaust sink and the
// remainder funds the reward pool. Re-engaging while a session is active
// is rejected unconditionally; the cooldown only applies after disengage.
func (l *Ledger) Engage(ctx context.Context, identity string, tier uint8, attachedWei *big.Int, now uint64) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if identity == "" {
		return fmt.Errorf("ledger: engage: %w", ErrZeroIdentity)
	}
	if l.cfg.Paused {
		return fmt.Errorf("ledger: engage: %w", ErrIntakePaused)
	}
	if tier > MaxTier {
		return fmt.Errorf("ledger: engage tier %d: %w", tier, ErrTierOutOfRange)
	}
	if l.cfg.TierMultiplierBps[tier] == 0 {
		return fmt.Errorf("ledger: engage tier %d: %w", tier, ErrInvalidTierConfig)
	}
	if attachedWei == nil || attachedWei.Sign() < 0 {
		return fmt.Errorf("ledger: engage: %w", ErrInvalidAmount)
	}
	required, err := RequiredDeposit(tier)
	if err != nil {
		return err
	}
	if attachedWei.Cmp(required) < 0 {
		return fmt.Errorf("ledger: engage tier %d needs %s wei, got %s: %w",
			tier, required, attachedWei, ErrInsufficientDeposit)
	}
	if prev, ok := l.sessions[identity]; ok && prev.Active {
		return fmt.Errorf("ledger: engage %s: %w", identity, ErrSessionAlreadyActive)
	}
	if !l.cooldownElapsed(identity, now) {
		return fmt.Errorf("ledger: engage %s: %w", identity, ErrCooldownActive)
	}

	duration, err := SessionDuration(tier)
	if err != nil {
		return err
	}

	deposit := new(big.Int).Set(attachedWei)
	cut := protocolCut(deposit)

	sess := Session{
		Identity:      identity,
		Tier:          tier,
		DepositWei:    deposit,
		EngagedAtTick: now,
		ExpiresAtTick: now + duration,
		Active:        true,
	}

	pools := l.pools.clone()
	pools.TotalIntakeDepositsWei.Add(pools.TotalIntakeDepositsWei, deposit)
	pools.ProtocolAccruedWei.Add(pools.ProtocolAccruedWei, cut)
	pools.TotalRewardPoolWei.Add(pools.TotalRewardPoolWei, new(big.Int).Sub(deposit, cut))
	pools.SystemBalanceWei.Add(pools.SystemBalanceWei, deposit)

	if err := l.store.SaveEngage(ctx, sess, pools); err != nil {
		return fmt.Errorf("ledger: engage %s: persist: %w", identity, err)
	}

	l.sessions[identity] = sess
	l.pools = pools

	metrics.EngagesTotal.WithLabelValues(tierLabel(tier)).Inc()
	metrics.SessionsActive.Inc()
	l.publishPoolGauges()

	l.notifier.Emit(Event{
		Kind:     EventEngaged,
		Identity: identity,
		Tier:     tier,
		Wei:      new(big.Int).Set(deposit),
		Tick:     now,
	})
	return nil
}

// Disengage closes identity's session after natural expiry and pays the
// refund back to the identity. There is no early exit: before the expiry
// tick the call fails ErrSessionNotExpired. The refund is the deposit
// minus the protocol share (see RefundAmount for the double-application
// note); the difference between deposit and refund stays in the system
// balance.
//
// The session is settled before the refund transfer is attempted, so an
// ErrTransferFailed return leaves the session deactivated and the refund
// owed out-of-band.
func (l *Ledger) Disengage(ctx context.Context, identity string, now uint64) (*big.Int, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	if identity == "" {
		return nil, fmt.Errorf("ledger: disengage: %w", ErrZeroIdentity)
	}
	sess, ok := l.sessions[identity]
	if !ok || !sess.Active {
		return nil, fmt.Errorf("ledger: disengage %s: %w", identity, ErrNoActiveSession)
	}
	if !sess.Expired(now) {
		return nil, fmt.Errorf("ledger: disengage %s: expires at tick %d, now %d: %w",
			identity, sess.ExpiresAtTick, now, ErrSessionNotExpired)
	}

	refund := RefundAmount(sess.DepositWei)

	closed := sess.clone()
	closed.Active = false

	pools := l.pools.clone()
	pools.TotalIntakeDepositsWei.Sub(pools.TotalIntakeDepositsWei, sess.DepositWei)
	pools.SystemBalanceWei.Sub(pools.SystemBalanceWei, refund)

	if err := l.store.SaveDisengage(ctx, closed, now, pools); err != nil {
		return nil, fmt.Errorf("ledger: disengage %s: persist: %w", identity, err)
	}

	l.sessions[identity] = closed
	l.lastDisengage[identity] = now
	l.pools = pools

	metrics.DisengagesTotal.Inc()
	metrics.SessionsActive.Dec()
	l.publishPoolGauges()

	l.notifier.Emit(Event{
		Kind:     EventDisengaged,
		Identity: identity,
		Tier:     closed.Tier,
		Wei:      new(big.Int).Set(refund),
		Tick:     now,
	})

	if err := l.payout(ctx, identity, refund); err != nil {
		return nil, err
	}
	return refund, nil
}

// cooldownElapsed reports whether identity may start a new session as
// far as the cooldown is concerned. An identity that never disengaged
// has no cooldown constraint.
func (l *Ledger) cooldownElapsed(identity string, now uint64) bool {
	last, ok := l.lastDisengage[identity]
	if !ok || last == 0 {
		return true
	}
	return now >= last+l.cfg.CooldownBlocks
}

func (l *Ledger) activeCount() int {
	n := 0
	for _, s := range l.sessions {
		if s.Active {
			n++
		}
	}
	return n
}

func (l *Ledger) publishPoolGauges() {
	metrics.SetPoolGauges(
		l.pools.TotalIntakeDepositsWei,
		l.pools.TotalRewardPoolWei,
		l.pools.ProtocolAccruedWei,
		l.pools.SystemBalanceWei,
	)
}

func tierLabel(tier uint8) string {
	return fmt.Sprintf("%d", tier)
}
