package ledger

import (
	"fmt"
	"math/big"
)

const (
	// MaxTier is the highest configurable boost tier (tiers are 0..4).
	MaxTier = 4

	// BpsDenominator is the basis-point scale: 10000 bps = 100%.
	BpsDenominator = 10_000

	// ProtocolShareBps is the protocol fee taken from every deposit,
	// in basis points (3.2%).
	ProtocolShareBps = 320

	// NeutralMultiplierBps is the multiplier reported for identities
	// without a live session.
	NeutralMultiplierBps uint32 = 10_000
)

// MinDepositWei is the tier-0 deposit floor: 0.01 unit.
var MinDepositWei = big.NewInt(10_000_000_000_000_000)

// sessionDurationTicks is the fixed per-tier session length. Strictly
// increasing in tier: 1, 3, 7, 14 and 28 days at 15-second ticks.
var sessionDurationTicks = [MaxTier + 1]uint64{
	5_760,
	17_280,
	40_320,
	80_640,
	161_280,
}

// DefaultTierMultiplierBps is the multiplier table a fresh ledger starts
// with: 110% at tier 0 up to 300% at tier 4. The controller can overwrite
// any entry, and setting an entry to 0 disables that tier for engagement.
var DefaultTierMultiplierBps = [MaxTier + 1]uint32{
	11_000,
	12_500,
	15_000,
	20_000,
	30_000,
}

// DefaultCooldownBlocks is the post-disengage cooldown a fresh ledger
// starts with (one day at 15-second ticks).
const DefaultCooldownBlocks uint64 = 5_760

// RequiredDeposit returns the minimum attached value for the given tier.
// Scaling is linear: tier 0 requires 1x MinDepositWei, tier 4 requires 5x.
func RequiredDeposit(tier uint8) (*big.Int, error) {
	if tier > MaxTier {
		return nil, fmt.Errorf("ledger: tier %d: %w", tier, ErrTierOutOfRange)
	}
	return new(big.Int).Mul(MinDepositWei, big.NewInt(int64(tier)+1)), nil
}

// SessionDuration returns the fixed session length, in ticks, for the
// given tier.
func SessionDuration(tier uint8) (uint64, error) {
	if tier > MaxTier {
		return 0, fmt.Errorf("ledger: tier %d: %w", tier, ErrTierOutOfRange)
	}
	return sessionDurationTicks[tier], nil
}

// protocolCut returns floor(value * ProtocolShareBps / BpsDenominator).
func protocolCut(value *big.Int) *big.Int {
	cut := new(big.Int).Mul(value, big.NewInt(ProtocolShareBps))
	return cut.Quo(cut, big.NewInt(BpsDenominator))
}

// RefundAmount returns the payout owed when a deposit is returned at
// disengage: the deposit minus the protocol share, floored.
//
// Note the fee fraction was already carved out of the deposit at engage
// time when the value was split into the pools; the refund applies the
// same fraction against the full deposit a second time. That matches the
// observed production behavior and is kept deliberately — the shortfall
// stays in the system balance rather than being returned.
func RefundAmount(deposit *big.Int) *big.Int {
	return new(big.Int).Sub(deposit, protocolCut(deposit))
}
