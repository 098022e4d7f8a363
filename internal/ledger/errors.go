package ledger

import "errors"

// Every failure mode of the ledger maps to one of these sentinels so
// callers (and the rpc boundary) can translate them without string
// matching. Operations wrap them with context via fmt.Errorf and %w.
var (
	// ErrUnauthorized rejects controller-only operations invoked by
	// anyone the configured Authority does not recognize.
	ErrUnauthorized = errors.New("caller is not the controller")

	// ErrIntakePaused rejects engage while the system is paused.
	ErrIntakePaused = errors.New("intake is paused")

	// ErrTierOutOfRange rejects tier arguments outside [0, MaxTier].
	ErrTierOutOfRange = errors.New("tier out of range")

	// ErrInvalidTierConfig rejects engage on a tier whose multiplier is
	// zero (unconfigured/disabled).
	ErrInvalidTierConfig = errors.New("tier is not configured")

	// ErrInsufficientDeposit rejects engage when the attached value is
	// below the tier's required deposit.
	ErrInsufficientDeposit = errors.New("attached value below required deposit")

	// ErrSessionAlreadyActive rejects engage while the identity already
	// holds an active session, expired or not.
	ErrSessionAlreadyActive = errors.New("session already active")

	// ErrCooldownActive rejects engage before the post-disengage
	// cooldown has elapsed.
	ErrCooldownActive = errors.New("cooldown not elapsed")

	// ErrNoActiveSession rejects disengage when the identity has no
	// active session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionNotExpired rejects disengage before the session's expiry
	// tick. There is no early exit.
	ErrSessionNotExpired = errors.New("session not yet expired")

	// ErrZeroIdentity rejects operations on an empty identity.
	ErrZeroIdentity = errors.New("zero identity")

	// ErrInvalidAmount rejects nil or negative wei amounts.
	ErrInvalidAmount = errors.New("amount must be a non-negative integer")

	// ErrReentrancyRejected rejects a mutating call that arrives while
	// another mutating call on the same ledger is still in flight
	// (typically a re-entrant call from the value-transfer leg).
	ErrReentrancyRejected = errors.New("reentrant call rejected")

	// ErrRewardPoolDrainBlocked rejects a claim that exceeds the tracked
	// system balance. Guards against over-crediting draining deposits.
	ErrRewardPoolDrainBlocked = errors.New("claim exceeds system balance")

	// ErrTransferFailed reports a failed outbound value transfer. State
	// has already been settled when this is returned; see the package
	// comment for the ordering contract.
	ErrTransferFailed = errors.New("value transfer failed")
)
