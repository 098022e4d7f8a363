package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/turbopool/turbo-ledger/internal/metrics"
)

// CreditReward increments identity's pending reward. Controller only.
// There is no cap and no pool-balance check at credit time; solvency is
// enforced at claim time instead.
func (l *Ledger) CreditReward(ctx context.Context, caller, identity string, amountWei *big.Int) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if !l.auth.IsController(caller) {
		return fmt.Errorf("ledger: credit reward: %w", ErrUnauthorized)
	}
	if identity == "" {
		return fmt.Errorf("ledger: credit reward: %w", ErrZeroIdentity)
	}
	if amountWei == nil || amountWei.Sign() < 0 {
		return fmt.Errorf("ledger: credit reward: %w", ErrInvalidAmount)
	}

	pending := new(big.Int).Add(l.pendingOf(identity), amountWei)

	if err := l.store.SavePendingReward(ctx, identity, pending, l.pools); err != nil {
		return fmt.Errorf("ledger: credit reward %s: persist: %w", identity, err)
	}
	l.pending[identity] = pending

	metrics.RewardCreditsTotal.Inc()
	l.notifier.Emit(Event{
		Kind:     EventRewardCredited,
		Identity: identity,
		Wei:      new(big.Int).Set(amountWei),
	})
	return nil
}

// ClaimReward pays identity's full pending reward out and resets it to
// zero. A zero pending balance is a successful no-op: no transfer, no
// event. A claim exceeding the tracked system balance fails
// ErrRewardPoolDrainBlocked with the pending balance left intact.
//
// Claims deliberately do not debit TotalRewardPoolWei: that counter is
// advisory, and the solvency guard runs against the system balance.
func (l *Ledger) ClaimReward(ctx context.Context, identity string) (*big.Int, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	if identity == "" {
		return nil, fmt.Errorf("ledger: claim reward: %w", ErrZeroIdentity)
	}

	amount := l.pendingOf(identity)
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}
	if amount.Cmp(l.pools.SystemBalanceWei) > 0 {
		return nil, fmt.Errorf("ledger: claim %s wei by %s: %w", amount, identity, ErrRewardPoolDrainBlocked)
	}

	pools := l.pools.clone()
	pools.SystemBalanceWei.Sub(pools.SystemBalanceWei, amount)

	if err := l.store.SavePendingReward(ctx, identity, new(big.Int), pools); err != nil {
		return nil, fmt.Errorf("ledger: claim reward %s: persist: %w", identity, err)
	}
	l.pending[identity] = new(big.Int)
	l.pools = pools

	metrics.RewardClaimsTotal.Inc()
	l.publishPoolGauges()

	l.notifier.Emit(Event{
		Kind:     EventRewardClaimed,
		Identity: identity,
		Wei:      new(big.Int).Set(amount),
	})

	if err := l.payout(ctx, identity, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// FundRewardPool adds value to the reward pool. Controller only. The
// value also raises the tracked system balance, mirroring the deposit
// arriving at the hosting account.
func (l *Ledger) FundRewardPool(ctx context.Context, caller string, amountWei *big.Int) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if !l.auth.IsController(caller) {
		return fmt.Errorf("ledger: fund reward pool: %w", ErrUnauthorized)
	}
	if amountWei == nil || amountWei.Sign() < 0 {
		return fmt.Errorf("ledger: fund reward pool: %w", ErrInvalidAmount)
	}
	if amountWei.Sign() == 0 {
		return nil
	}

	pools := l.pools.clone()
	pools.TotalRewardPoolWei.Add(pools.TotalRewardPoolWei, amountWei)
	pools.SystemBalanceWei.Add(pools.SystemBalanceWei, amountWei)

	if err := l.store.SavePools(ctx, pools); err != nil {
		return fmt.Errorf("ledger: fund reward pool: persist: %w", err)
	}
	l.pools = pools

	l.publishPoolGauges()
	l.notifier.Emit(Event{
		Kind: EventPoolFunded,
		Wei:  new(big.Int).Set(amountWei),
	})
	return nil
}

// WithdrawProtocolAccrued drains the accrued protocol fee balance to the
// exhaust sink. Controller only. A zero balance is a successful no-op.
// Like the other payout operations, the balance is zeroed before the
// transfer leg runs.
func (l *Ledger) WithdrawProtocolAccrued(ctx context.Context, caller string) (*big.Int, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	if !l.auth.IsController(caller) {
		return nil, fmt.Errorf("ledger: withdraw protocol accrued: %w", ErrUnauthorized)
	}

	amount := new(big.Int).Set(l.pools.ProtocolAccruedWei)
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}

	pools := l.pools.clone()
	pools.ProtocolAccruedWei.SetInt64(0)
	pools.SystemBalanceWei.Sub(pools.SystemBalanceWei, amount)

	if err := l.store.SavePools(ctx, pools); err != nil {
		return nil, fmt.Errorf("ledger: withdraw protocol accrued: persist: %w", err)
	}
	l.pools = pools

	l.publishPoolGauges()
	l.notifier.Emit(Event{
		Kind: EventFeesWithdrawn,
		Wei:  new(big.Int).Set(amount),
	})

	if err := l.payout(ctx, l.sink, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// pendingOf returns identity's pending reward, zero when absent. The
// returned value is shared; callers must not mutate it.
func (l *Ledger) pendingOf(identity string) *big.Int {
	if p, ok := l.pending[identity]; ok {
		return p
	}
	return new(big.Int)
}
