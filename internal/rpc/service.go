package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/turbopool/turbo-ledger/internal/ledger"
	"github.com/turbopool/turbo-ledger/internal/messaging"
	"github.com/turbopool/turbo-ledger/internal/metrics"
	"github.com/turbopool/turbo-ledger/internal/ratelimit"
)

const (
	// requestTimeout bounds one boundary request end to end, the
	// outbound transfer leg included.
	requestTimeout = 10 * time.Second

	// queueGroup shares the cmd subjects across ledgerd replicas.
	queueGroup = "turbo-ledger"
)

// Service wires the ledger to the turbo.cmd.* subjects.
type Service struct {
	ledger  *ledger.Ledger
	nats    *messaging.NATSClient
	limiter *ratelimit.Limiter // nil disables throttling
}

// NewService creates the boundary service. limiter may be nil.
func NewService(l *ledger.Ledger, nats *messaging.NATSClient, limiter *ratelimit.Limiter) *Service {
	return &Service{ledger: l, nats: nats, limiter: limiter}
}

// handler turns a raw request into a raw reply.
type handler func(ctx context.Context, data []byte) []byte

// Start subscribes every boundary operation. Returns on the first
// subscription failure.
func (s *Service) Start() error {
	ops := map[string]handler{
		OpEngage:            s.handleEngage,
		OpDisengage:         s.handleDisengage,
		OpClaimReward:       s.handleClaimReward,
		OpCreditReward:      s.handleCreditReward,
		OpFundRewardPool:    s.handleFundRewardPool,
		OpWithdrawProtocol:  s.handleWithdrawProtocol,
		OpSetPaused:         s.handleSetPaused,
		OpSetCooldown:       s.handleSetCooldown,
		OpSetTierMultiplier: s.handleSetTierMultiplier,
		OpRequiredDeposit:   s.handleRequiredDeposit,
		OpSessionDuration:   s.handleSessionDuration,
		OpRefundAmount:      s.handleRefundAmount,
		OpCanEngage:         s.handleCanEngage,
		OpBlocksUntil:       s.handleBlocksUntil,
		OpCurrentMultiplier: s.handleCurrentMultiplier,
		OpGetSession:        s.handleGetSession,
		OpIsPaused:          s.handleIsPaused,
		OpPools:             s.handlePools,
	}

	for op, h := range ops {
		op, h := op, h
		err := s.nats.SubscribeCmd(op, queueGroup, func(msg *nats.Msg) {
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			reply := h(ctx, msg.Data)
			cancel()
			metrics.RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
			s.track(op, reply)
			if err := msg.Respond(reply); err != nil {
				log.Printf("[rpc] respond %s: %v", op, err)
			}
		})
		if err != nil {
			return fmt.Errorf("rpc: subscribe %s: %w", op, err)
		}
	}

	log.Printf("[rpc] boundary service started (%d operations)", len(ops))
	return nil
}

// track counts rejected requests by op and code.
func (s *Service) track(op string, replyData []byte) {
	var reply Reply
	if err := json.Unmarshal(replyData, &reply); err != nil || reply.OK {
		return
	}
	metrics.RejectedTotal.WithLabelValues(op, reply.Code).Inc()
}

// allow applies a rate limit rule, failing open without a limiter.
func (s *Service) allow(ctx context.Context, identity string, rule ratelimit.Rule) bool {
	if s.limiter == nil || identity == "" {
		return true
	}
	ok, _ := s.limiter.Allow(ctx, identity, rule)
	return ok
}

// ---------------------------------------------------------------------------
// Mutating operations
// ---------------------------------------------------------------------------

func (s *Service) handleEngage(ctx context.Context, data []byte) []byte {
	var req EngageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if !s.allow(ctx, req.Identity, ratelimit.RuleEngage) {
		return errReply(CodeRateLimited, fmt.Errorf("rpc: engage rate limited for %s", req.Identity))
	}
	attached, err := parseWei(req.AttachedWei)
	if err != nil {
		return errReply(CodeBadRequest, err)
	}
	if err := s.ledger.Engage(ctx, req.Identity, req.Tier, attached, req.Now); err != nil {
		return errReply(errorCode(err), err)
	}
	sess, _ := s.ledger.GetSession(req.Identity)
	return okReply(sessionResult(sess, true))
}

func (s *Service) handleDisengage(ctx context.Context, data []byte) []byte {
	var req DisengageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	refund, err := s.ledger.Disengage(ctx, req.Identity, req.Now)
	if err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(WeiResult{Wei: refund.String()})
}

func (s *Service) handleClaimReward(ctx context.Context, data []byte) []byte {
	var req ClaimRewardRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if !s.allow(ctx, req.Identity, ratelimit.RuleClaim) {
		return errReply(CodeRateLimited, fmt.Errorf("rpc: claim rate limited for %s", req.Identity))
	}
	claimed, err := s.ledger.ClaimReward(ctx, req.Identity)
	if err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(WeiResult{Wei: claimed.String()})
}

func (s *Service) handleCreditReward(ctx context.Context, data []byte) []byte {
	var req CreditRewardRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	amount, err := parseWei(req.Wei)
	if err != nil {
		return errReply(CodeBadRequest, err)
	}
	if err := s.ledger.CreditReward(ctx, req.Caller, req.Identity, amount); err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(nil)
}

func (s *Service) handleFundRewardPool(ctx context.Context, data []byte) []byte {
	var req FundRewardPoolRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	amount, err := parseWei(req.Wei)
	if err != nil {
		return errReply(CodeBadRequest, err)
	}
	if err := s.ledger.FundRewardPool(ctx, req.Caller, amount); err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(nil)
}

func (s *Service) handleWithdrawProtocol(ctx context.Context, data []byte) []byte {
	var req WithdrawProtocolRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	withdrawn, err := s.ledger.WithdrawProtocolAccrued(ctx, req.Caller)
	if err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(WeiResult{Wei: withdrawn.String()})
}

func (s *Service) handleSetPaused(ctx context.Context, data []byte) []byte {
	var req SetPausedRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if err := s.ledger.SetPaused(ctx, req.Caller, req.Paused); err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(nil)
}

func (s *Service) handleSetCooldown(ctx context.Context, data []byte) []byte {
	var req SetCooldownRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if err := s.ledger.SetCooldown(ctx, req.Caller, req.Ticks); err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(nil)
}

func (s *Service) handleSetTierMultiplier(ctx context.Context, data []byte) []byte {
	var req SetTierMultiplierRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if err := s.ledger.SetTierMultiplier(ctx, req.Caller, req.Tier, req.Bps); err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(nil)
}

// ---------------------------------------------------------------------------
// Read-only operations
// ---------------------------------------------------------------------------

func (s *Service) handleRequiredDeposit(ctx context.Context, data []byte) []byte {
	var req TierRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	required, err := ledger.RequiredDeposit(req.Tier)
	if err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(WeiResult{Wei: required.String()})
}

func (s *Service) handleSessionDuration(ctx context.Context, data []byte) []byte {
	var req TierRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	duration, err := ledger.SessionDuration(req.Tier)
	if err != nil {
		return errReply(errorCode(err), err)
	}
	return okReply(TicksResult{Ticks: duration})
}

func (s *Service) handleRefundAmount(ctx context.Context, data []byte) []byte {
	var req RefundAmountRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	deposit, err := parseWei(req.DepositWei)
	if err != nil {
		return errReply(CodeBadRequest, err)
	}
	return okReply(WeiResult{Wei: ledger.RefundAmount(deposit).String()})
}

func (s *Service) handleCanEngage(ctx context.Context, data []byte) []byte {
	var req IdentityTickRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if !s.allow(ctx, req.Identity, ratelimit.RuleQuery) {
		return errReply(CodeRateLimited, fmt.Errorf("rpc: query rate limited for %s", req.Identity))
	}
	return okReply(BoolResult{Value: s.ledger.CanEngage(req.Identity, req.Now)})
}

func (s *Service) handleBlocksUntil(ctx context.Context, data []byte) []byte {
	var req IdentityTickRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if !s.allow(ctx, req.Identity, ratelimit.RuleQuery) {
		return errReply(CodeRateLimited, fmt.Errorf("rpc: query rate limited for %s", req.Identity))
	}
	return okReply(TicksResult{Ticks: s.ledger.BlocksUntilCanEngage(req.Identity, req.Now)})
}

func (s *Service) handleCurrentMultiplier(ctx context.Context, data []byte) []byte {
	var req IdentityTickRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if !s.allow(ctx, req.Identity, ratelimit.RuleQuery) {
		return errReply(CodeRateLimited, fmt.Errorf("rpc: query rate limited for %s", req.Identity))
	}
	return okReply(MultiplierResult{Bps: s.ledger.CurrentMultiplier(req.Identity, req.Now)})
}

func (s *Service) handleGetSession(ctx context.Context, data []byte) []byte {
	var req IdentityRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errReply(CodeBadRequest, err)
	}
	if !s.allow(ctx, req.Identity, ratelimit.RuleQuery) {
		return errReply(CodeRateLimited, fmt.Errorf("rpc: query rate limited for %s", req.Identity))
	}
	sess, found := s.ledger.GetSession(req.Identity)
	return okReply(sessionResult(sess, found))
}

func (s *Service) handleIsPaused(ctx context.Context, data []byte) []byte {
	return okReply(BoolResult{Value: s.ledger.IsPaused()})
}

func (s *Service) handlePools(ctx context.Context, data []byte) []byte {
	pools := s.ledger.Pools()
	return okReply(PoolsResult{
		TotalIntakeDepositsWei: pools.TotalIntakeDepositsWei.String(),
		TotalRewardPoolWei:     pools.TotalRewardPoolWei.String(),
		ProtocolAccruedWei:     pools.ProtocolAccruedWei.String(),
		SystemBalanceWei:       pools.SystemBalanceWei.String(),
	})
}

func sessionResult(sess ledger.Session, found bool) SessionResult {
	if !found {
		return SessionResult{Found: false}
	}
	return SessionResult{
		Found:         true,
		Identity:      sess.Identity,
		Tier:          sess.Tier,
		DepositWei:    sess.DepositWei.String(),
		EngagedAtTick: sess.EngagedAtTick,
		ExpiresAtTick: sess.ExpiresAtTick,
		Active:        sess.Active,
	}
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("rpc: malformed wei value %q", s)
	}
	return wei, nil
}
