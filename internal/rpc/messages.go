// Package rpc exposes every ledger boundary operation over NATS
// request/reply. Requests arrive on turbo.cmd.<op> as JSON, carry the
// caller identity and the environment-supplied logical clock, and get a
// JSON reply envelope back. Authentication of the identity itself is an
// external concern; the ledger treats it as opaque.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/turbopool/turbo-ledger/internal/ledger"
)

// Boundary operation names. Appended to messaging.SubjectCmdPrefix to
// form the request subject.
const (
	OpEngage            = "engage"
	OpDisengage         = "disengage"
	OpClaimReward       = "claim_reward"
	OpCreditReward      = "credit_reward"
	OpFundRewardPool    = "fund_reward_pool"
	OpWithdrawProtocol  = "withdraw_protocol"
	OpSetPaused         = "set_paused"
	OpSetCooldown       = "set_cooldown"
	OpSetTierMultiplier = "set_tier_multiplier"
	OpRequiredDeposit   = "required_deposit"
	OpSessionDuration   = "session_duration"
	OpRefundAmount      = "refund_amount"
	OpCanEngage         = "can_engage"
	OpBlocksUntil       = "blocks_until_can_engage"
	OpCurrentMultiplier = "current_multiplier"
	OpGetSession        = "get_session"
	OpIsPaused          = "is_paused"
	OpPools             = "pools"
)

// Machine-readable rejection codes carried in the reply envelope.
const (
	CodeUnauthorized          = "unauthorized"
	CodeIntakePaused          = "intake_paused"
	CodeTierOutOfRange        = "tier_out_of_range"
	CodeInvalidTierConfig     = "invalid_tier_config"
	CodeInsufficientDeposit   = "insufficient_deposit"
	CodeSessionAlreadyActive  = "session_already_active"
	CodeCooldownActive        = "cooldown_active"
	CodeNoActiveSession       = "no_active_session"
	CodeSessionNotExpired     = "session_not_expired"
	CodeZeroIdentity          = "zero_identity"
	CodeInvalidAmount         = "invalid_amount"
	CodeReentrancyRejected    = "reentrancy_rejected"
	CodeRewardPoolDrainBlocked = "reward_pool_drain_blocked"
	CodeTransferFailed        = "transfer_failed"
	CodeRateLimited           = "rate_limited"
	CodeBadRequest            = "bad_request"
	CodeInternal              = "internal"
)

// Reply is the envelope every turbo.cmd.* request gets back.
type Reply struct {
	OK     bool            `json:"ok"`
	Code   string          `json:"code,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Request payloads. Wei amounts travel as decimal strings.

type EngageRequest struct {
	Identity    string `json:"identity"`
	Tier        uint8  `json:"tier"`
	AttachedWei string `json:"attached_wei"`
	Now         uint64 `json:"now"`
}

type DisengageRequest struct {
	Identity string `json:"identity"`
	Now      uint64 `json:"now"`
}

type ClaimRewardRequest struct {
	Identity string `json:"identity"`
}

type CreditRewardRequest struct {
	Caller   string `json:"caller"`
	Identity string `json:"identity"`
	Wei      string `json:"wei"`
}

type FundRewardPoolRequest struct {
	Caller string `json:"caller"`
	Wei    string `json:"wei"`
}

type WithdrawProtocolRequest struct {
	Caller string `json:"caller"`
}

type SetPausedRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type SetCooldownRequest struct {
	Caller string `json:"caller"`
	Ticks  uint64 `json:"ticks"`
}

type SetTierMultiplierRequest struct {
	Caller string `json:"caller"`
	Tier   uint8  `json:"tier"`
	Bps    uint32 `json:"bps"`
}

type TierRequest struct {
	Tier uint8 `json:"tier"`
}

type RefundAmountRequest struct {
	DepositWei string `json:"deposit_wei"`
}

type IdentityTickRequest struct {
	Identity string `json:"identity"`
	Now      uint64 `json:"now"`
}

type IdentityRequest struct {
	Identity string `json:"identity"`
}

// Result payloads.

type WeiResult struct {
	Wei string `json:"wei"`
}

type TicksResult struct {
	Ticks uint64 `json:"ticks"`
}

type BoolResult struct {
	Value bool `json:"value"`
}

type MultiplierResult struct {
	Bps uint32 `json:"bps"`
}

type SessionResult struct {
	Found         bool   `json:"found"`
	Identity      string `json:"identity,omitempty"`
	Tier          uint8  `json:"tier"`
	DepositWei    string `json:"deposit_wei,omitempty"`
	EngagedAtTick uint64 `json:"engaged_at_tick"`
	ExpiresAtTick uint64 `json:"expires_at_tick"`
	Active        bool   `json:"active"`
}

type PoolsResult struct {
	TotalIntakeDepositsWei string `json:"total_intake_deposits_wei"`
	TotalRewardPoolWei     string `json:"total_reward_pool_wei"`
	ProtocolAccruedWei     string `json:"protocol_accrued_wei"`
	SystemBalanceWei       string `json:"system_balance_wei"`
}

// errorCode maps ledger sentinels to wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ledger.ErrIntakePaused):
		return CodeIntakePaused
	case errors.Is(err, ledger.ErrTierOutOfRange):
		return CodeTierOutOfRange
	case errors.Is(err, ledger.ErrInvalidTierConfig):
		return CodeInvalidTierConfig
	case errors.Is(err, ledger.ErrInsufficientDeposit):
		return CodeInsufficientDeposit
	case errors.Is(err, ledger.ErrSessionAlreadyActive):
		return CodeSessionAlreadyActive
	case errors.Is(err, ledger.ErrCooldownActive):
		return CodeCooldownActive
	case errors.Is(err, ledger.ErrNoActiveSession):
		return CodeNoActiveSession
	case errors.Is(err, ledger.ErrSessionNotExpired):
		return CodeSessionNotExpired
	case errors.Is(err, ledger.ErrZeroIdentity):
		return CodeZeroIdentity
	case errors.Is(err, ledger.ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ledger.ErrReentrancyRejected):
		return CodeReentrancyRejected
	case errors.Is(err, ledger.ErrRewardPoolDrainBlocked):
		return CodeRewardPoolDrainBlocked
	case errors.Is(err, ledger.ErrTransferFailed):
		return CodeTransferFailed
	default:
		return CodeInternal
	}
}

// okReply marshals result into a success envelope. Marshal failures on
// our own types indicate a programming error and degrade to an internal
// error reply.
func okReply(result any) []byte {
	var raw json.RawMessage
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return errReply(CodeInternal, fmt.Errorf("marshal result: %w", err))
		}
		raw = data
	}
	data, _ := json.Marshal(Reply{OK: true, Result: raw})
	return data
}

func errReply(code string, err error) []byte {
	data, _ := json.Marshal(Reply{OK: false, Code: code, Error: err.Error()})
	return data
}
