package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/turbopool/turbo-ledger/internal/ledger"
	"github.com/turbopool/turbo-ledger/internal/store"
)

const (
	testController = "ctrl-1"
	testSink       = "sink-1"
	testUser       = "user-1"
)

type nopTransfer struct{}

func (nopTransfer) Transfer(ctx context.Context, to string, amountWei *big.Int) error { return nil }

// newTestService builds a service on an in-memory ledger. The NATS
// client and limiter stay nil: handlers never touch them.
func newTestService(t *testing.T) *Service {
	t.Helper()
	led, err := ledger.New(context.Background(), ledger.Deps{
		Store:       store.NewMemory(),
		Transfer:    nopTransfer{},
		Auth:        ledger.StaticAuthority{Controller: testController},
		ExhaustSink: testSink,
	})
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return NewService(led, nil, nil)
}

func call(t *testing.T, h handler, req any) Reply {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	var reply Reply
	if err := json.Unmarshal(h(context.Background(), data), &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	return reply
}

func TestHandleEngage_Success(t *testing.T) {
	s := newTestService(t)
	deposit, _ := ledger.RequiredDeposit(1)

	reply := call(t, s.handleEngage, EngageRequest{
		Identity:    testUser,
		Tier:        1,
		AttachedWei: deposit.String(),
		Now:         100,
	})
	if !reply.OK {
		t.Fatalf("engage reply not ok: %s %s", reply.Code, reply.Error)
	}

	var result SessionResult
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	duration, _ := ledger.SessionDuration(1)
	if !result.Found || !result.Active || result.Tier != 1 ||
		result.DepositWei != deposit.String() ||
		result.EngagedAtTick != 100 || result.ExpiresAtTick != 100+duration {
		t.Errorf("unexpected session result: %+v", result)
	}
}

func TestHandleEngage_ErrorCodes(t *testing.T) {
	deposit, _ := ledger.RequiredDeposit(0)

	tests := []struct {
		name string
		req  EngageRequest
		code string
	}{
		{
			name: "insufficient deposit",
			req:  EngageRequest{Identity: testUser, Tier: 4, AttachedWei: deposit.String()},
			code: CodeInsufficientDeposit,
		},
		{
			name: "tier out of range",
			req:  EngageRequest{Identity: testUser, Tier: 9, AttachedWei: deposit.String()},
			code: CodeTierOutOfRange,
		},
		{
			name: "zero identity",
			req:  EngageRequest{Tier: 0, AttachedWei: deposit.String()},
			code: CodeZeroIdentity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)
			reply := call(t, s.handleEngage, tt.req)
			if reply.OK || reply.Code != tt.code {
				t.Errorf("reply = ok:%v code:%s, want code %s", reply.OK, reply.Code, tt.code)
			}
		})
	}
}

func TestHandleEngage_MalformedPayloads(t *testing.T) {
	s := newTestService(t)

	var reply Reply
	json.Unmarshal(s.handleEngage(context.Background(), []byte("{not json")), &reply)
	if reply.OK || reply.Code != CodeBadRequest {
		t.Errorf("malformed JSON reply code = %s, want bad_request", reply.Code)
	}

	reply = call(t, s.handleEngage, EngageRequest{Identity: testUser, AttachedWei: "12x34"})
	if reply.OK || reply.Code != CodeBadRequest {
		t.Errorf("malformed wei reply code = %s, want bad_request", reply.Code)
	}
}

func TestHandleDisengage_LifecycleCodes(t *testing.T) {
	s := newTestService(t)
	deposit, _ := ledger.RequiredDeposit(0)

	reply := call(t, s.handleDisengage, DisengageRequest{Identity: testUser, Now: 0})
	if reply.Code != CodeNoActiveSession {
		t.Errorf("disengage without session code = %s, want no_active_session", reply.Code)
	}

	if r := call(t, s.handleEngage, EngageRequest{Identity: testUser, AttachedWei: deposit.String(), Now: 0}); !r.OK {
		t.Fatalf("engage failed: %s", r.Error)
	}
	duration, _ := ledger.SessionDuration(0)

	reply = call(t, s.handleDisengage, DisengageRequest{Identity: testUser, Now: duration - 1})
	if reply.Code != CodeSessionNotExpired {
		t.Errorf("early disengage code = %s, want session_not_expired", reply.Code)
	}

	reply = call(t, s.handleDisengage, DisengageRequest{Identity: testUser, Now: duration})
	if !reply.OK {
		t.Fatalf("disengage at expiry failed: %s %s", reply.Code, reply.Error)
	}
	var result WeiResult
	json.Unmarshal(reply.Result, &result)
	if want := ledger.RefundAmount(deposit).String(); result.Wei != want {
		t.Errorf("refund = %s, want %s", result.Wei, want)
	}
}

func TestHandleCreditReward_Unauthorized(t *testing.T) {
	s := newTestService(t)

	reply := call(t, s.handleCreditReward, CreditRewardRequest{
		Caller:   testUser,
		Identity: testUser,
		Wei:      "100",
	})
	if reply.OK || reply.Code != CodeUnauthorized {
		t.Errorf("credit by non-controller code = %s, want unauthorized", reply.Code)
	}
}

func TestHandleClaimReward_ZeroIsOK(t *testing.T) {
	s := newTestService(t)

	reply := call(t, s.handleClaimReward, ClaimRewardRequest{Identity: testUser})
	if !reply.OK {
		t.Fatalf("zero claim not ok: %s", reply.Error)
	}
	var result WeiResult
	json.Unmarshal(reply.Result, &result)
	if result.Wei != "0" {
		t.Errorf("claimed = %s, want 0", result.Wei)
	}
}

func TestHandleQueries(t *testing.T) {
	s := newTestService(t)

	reply := call(t, s.handleRequiredDeposit, TierRequest{Tier: 3})
	var wei WeiResult
	json.Unmarshal(reply.Result, &wei)
	want, _ := ledger.RequiredDeposit(3)
	if !reply.OK || wei.Wei != want.String() {
		t.Errorf("required_deposit(3) = %s, want %s", wei.Wei, want)
	}

	reply = call(t, s.handleRequiredDeposit, TierRequest{Tier: 7})
	if reply.OK || reply.Code != CodeTierOutOfRange {
		t.Errorf("required_deposit(7) code = %s, want tier_out_of_range", reply.Code)
	}

	reply = call(t, s.handleRefundAmount, RefundAmountRequest{DepositWei: "10000000000000000"})
	json.Unmarshal(reply.Result, &wei)
	if !reply.OK || wei.Wei != "9680000000000000" {
		t.Errorf("refund_amount = %s, want 9680000000000000", wei.Wei)
	}

	reply = call(t, s.handleGetSession, IdentityRequest{Identity: "nobody"})
	var sess SessionResult
	json.Unmarshal(reply.Result, &sess)
	if !reply.OK || sess.Found {
		t.Errorf("get_session for unknown identity = %+v, want found=false", sess)
	}

	reply = call(t, s.handleCanEngage, IdentityTickRequest{Identity: "nobody", Now: 0})
	var b BoolResult
	json.Unmarshal(reply.Result, &b)
	if !reply.OK || !b.Value {
		t.Error("can_engage for fresh identity should be true")
	}

	reply = call(t, s.handlePools, struct{}{})
	var pools PoolsResult
	json.Unmarshal(reply.Result, &pools)
	if !reply.OK || pools.SystemBalanceWei != "0" {
		t.Errorf("pools system balance = %s, want 0", pools.SystemBalanceWei)
	}
}
