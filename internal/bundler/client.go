// Package bundler submits user operations to an external bundler service
// over JSON-RPC.
//
// Submission is fire-and-forget beyond acknowledgment: once the request has
// been written, abandoning the call does not stop the operation from
// landing on-chain. A timeout is therefore reported as an unknown outcome,
// never as a confirmed failure.
package bundler

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"agentpay/internal/domain"
	"agentpay/internal/fault"
)

// caller is the one method of rpc.Client the bundler uses; tests inject
// fakes.
type caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Client talks to one bundler endpoint.
type Client struct {
	rpc caller
}

// Dial connects to the bundler RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, fault.New(fault.InvalidInput, "bundler.Dial", "no bundler endpoint configured")
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fault.Wrap(fault.NetworkUnavailable, "bundler.Dial", err)
	}
	return &Client{rpc: c}, nil
}

// NewWithCaller builds a client over a pre-constructed RPC caller.
func NewWithCaller(c caller) *Client { return &Client{rpc: c} }

// SendUserOperation submits the operation for inclusion and returns the
// operation hash acknowledged by the bundler.
func (c *Client) SendUserOperation(ctx context.Context, op *domain.UserOperation, entryPoint common.Address) (common.Hash, error) {
	const opName = "bundler.SendUserOperation"

	var out common.Hash
	if err := c.rpc.CallContext(ctx, &out, "eth_sendUserOperation", op.RPC(), entryPoint); err != nil {
		return common.Hash{}, classify(opName, err)
	}
	return out, nil
}

// classify maps bundler errors onto the fault taxonomy. Validation errors
// from the chain's entrypoint (expired window, call outside policy, signer
// not enabled) are policy violations; a deadline after the request was
// written is an unknown outcome.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fault.Wrap(fault.UnknownOutcome, op, err)
	}
	if isPolicyRejection(err) {
		return fault.Wrap(fault.PolicyViolation, op, err)
	}
	return fault.Wrap(fault.NetworkUnavailable, op, err)
}

// Entrypoint validation markers. AA22 is the expired/not-due window code;
// AA23/AA24 are validation and signature failures raised when a session
// key's policies reject the operation.
var policyMarkers = []string{
	"aa22",
	"aa23",
	"aa24",
	"expired",
	"not due",
	"policy",
	"session key",
	"not authorized",
	"validation failed",
}

func isPolicyRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range policyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Compile-time assertion that Client implements domain.Bundler.
var _ domain.Bundler = (*Client)(nil)
