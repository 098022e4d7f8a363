package ledger

import "math/big"

// Event kinds emitted after a mutation has been settled.
const (
	EventEngaged        = "engaged"
	EventDisengaged     = "disengaged"
	EventRewardCredited = "reward_credited"
	EventRewardClaimed  = "reward_claimed"
	EventPoolFunded     = "pool_funded"
	EventFeesWithdrawn  = "fees_withdrawn"
	EventConfigUpdated  = "config_updated"
)

// Event is a ledger lifecycle notification. Kind selects which of the
// optional fields are populated.
type Event struct {
	Kind     string
	Identity string   // engaged, disengaged, reward_*
	Tier     uint8    // engaged
	Wei      *big.Int // deposit, refund, credit, claim, funding or withdrawal amount
	Tick     uint64   // logical clock at emission, when the operation carries one
	Setting  string   // config_updated: "paused", "cooldown", "tier_multiplier"
	Value    uint64   // config_updated: new numeric value (bool encoded as 0/1)
}

// Notifier receives events after the corresponding state change has been
// committed. Implementations must not call back into the ledger and must
// not block; delivery is best effort and never fails the operation.
type Notifier interface {
	Emit(e Event)
}

// NopNotifier discards all events.
type NopNotifier struct{}

// Emit implements Notifier.
func (NopNotifier) Emit(Event) {}
