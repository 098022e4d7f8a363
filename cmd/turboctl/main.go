// turboctl sends ledger commands and queries over NATS request/reply
// and prints the JSON reply. Intended for operators; the caller flag is
// the identity the ledger sees, so controller operations need it set to
// the configured controller.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/turbopool/turbo-ledger/internal/messaging"
	"github.com/turbopool/turbo-ledger/internal/rpc"
)

func main() {
	var (
		natsURL  = flag.String("nats", "nats://localhost:4222", "NATS server URL")
		op       = flag.String("op", "", "operation (engage, disengage, claim_reward, credit_reward, fund_reward_pool, withdraw_protocol, set_paused, set_cooldown, set_tier_multiplier, required_deposit, session_duration, refund_amount, can_engage, blocks_until_can_engage, current_multiplier, get_session, is_paused, pools)")
		caller   = flag.String("caller", "", "caller identity (controller for privileged ops)")
		identity = flag.String("identity", "", "target identity")
		tier     = flag.Uint("tier", 0, "boost tier (0-4)")
		wei      = flag.String("wei", "", "wei amount as a decimal string")
		now      = flag.Uint64("now", 0, "current logical tick")
		paused   = flag.Bool("paused", false, "paused flag for set_paused")
		ticks    = flag.Uint64("ticks", 0, "cooldown ticks for set_cooldown")
		bps      = flag.Uint("bps", 0, "multiplier bps for set_tier_multiplier")
		timeout  = flag.Duration("timeout", 15*time.Second, "request timeout")
	)
	flag.Parse()

	if *op == "" {
		flag.Usage()
		os.Exit(2)
	}

	req, err := buildRequest(*op, *caller, *identity, uint8(*tier), *wei, *now, *paused, *ticks, uint32(*bps))
	if err != nil {
		log.Fatalf("bad request: %v", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("marshal request: %v", err)
	}

	cfg := messaging.DefaultNATSConfig()
	cfg.URL = *natsURL
	cfg.Name = "turboctl"
	cfg.MaxReconnects = 1
	client, err := messaging.NewNATSClient(cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close()

	replyData, err := client.Request(messaging.SubjectCmdPrefix+*op, data, *timeout)
	if err != nil {
		log.Fatalf("request: %v", err)
	}

	var pretty json.RawMessage = replyData
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(replyData))
		return
	}
	fmt.Println(string(out))
}

func buildRequest(op, caller, identity string, tier uint8, wei string, now uint64, paused bool, ticks uint64, bps uint32) (any, error) {
	switch op {
	case rpc.OpEngage:
		return rpc.EngageRequest{Identity: identity, Tier: tier, AttachedWei: wei, Now: now}, nil
	case rpc.OpDisengage:
		return rpc.DisengageRequest{Identity: identity, Now: now}, nil
	case rpc.OpClaimReward:
		return rpc.ClaimRewardRequest{Identity: identity}, nil
	case rpc.OpCreditReward:
		return rpc.CreditRewardRequest{Caller: caller, Identity: identity, Wei: wei}, nil
	case rpc.OpFundRewardPool:
		return rpc.FundRewardPoolRequest{Caller: caller, Wei: wei}, nil
	case rpc.OpWithdrawProtocol:
		return rpc.WithdrawProtocolRequest{Caller: caller}, nil
	case rpc.OpSetPaused:
		return rpc.SetPausedRequest{Caller: caller, Paused: paused}, nil
	case rpc.OpSetCooldown:
		return rpc.SetCooldownRequest{Caller: caller, Ticks: ticks}, nil
	case rpc.OpSetTierMultiplier:
		return rpc.SetTierMultiplierRequest{Caller: caller, Tier: tier, Bps: bps}, nil
	case rpc.OpRequiredDeposit, rpc.OpSessionDuration:
		return rpc.TierRequest{Tier: tier}, nil
	case rpc.OpRefundAmount:
		return rpc.RefundAmountRequest{DepositWei: wei}, nil
	case rpc.OpCanEngage, rpc.OpBlocksUntil, rpc.OpCurrentMultiplier:
		return rpc.IdentityTickRequest{Identity: identity, Now: now}, nil
	case rpc.OpGetSession:
		return rpc.IdentityRequest{Identity: identity}, nil
	case rpc.OpIsPaused, rpc.OpPools:
		return struct{}{}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}
