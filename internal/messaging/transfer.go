package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"
)

// TransferRequest is the request/reply payload sent to the external
// payout executor on turbo.transfer.request.
type TransferRequest struct {
	To  string `json:"to"`
	Wei string `json:"wei"`
}

// TransferReply is the executor's answer. OK false (or no reply before
// the deadline) means the transfer did not happen.
type TransferReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Transferor executes outbound value transfers through the payout
// executor over NATS request/reply. It implements ledger.Transferor and
// is the untrusted external boundary of the ledger: a timeout or a
// negative reply surfaces as an error, which the ledger maps to its
// transfer-failed condition.
type Transferor struct {
	nats    *NATSClient
	timeout time.Duration
}

// NewTransferor returns a transferor with the given per-transfer
// deadline.
func NewTransferor(nats *NATSClient, timeout time.Duration) *Transferor {
	return &Transferor{nats: nats, timeout: timeout}
}

// Transfer implements ledger.Transferor.
func (t *Transferor) Transfer(ctx context.Context, to string, amountWei *big.Int) error {
	req := TransferRequest{To: to, Wei: amountWei.String()}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("transfer: marshal request: %w", err)
	}

	timeout := t.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	replyData, err := t.nats.Request(SubjectTransferRequest, data, timeout)
	if err != nil {
		return fmt.Errorf("transfer: %s wei to %s: %w", amountWei, to, err)
	}

	var reply TransferReply
	if err := json.Unmarshal(replyData, &reply); err != nil {
		return fmt.Errorf("transfer: malformed reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("transfer: executor rejected: %s", reply.Error)
	}

	log.Printf("[transfer] %s wei to %s ok", amountWei, to)
	return nil
}
