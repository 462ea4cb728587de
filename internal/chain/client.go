// Package chain provides read-only access to the target chain over one or
// more equivalent RPC endpoints. Reads fail over to the next endpoint on
// transport errors; the package never submits transactions.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"agentpay/internal/domain"
	"agentpay/internal/fault"
)

// Backend is the slice of ethclient.Client the reader needs. Tests inject
// fakes; production backends are dialed ethclients.
type Backend interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client fans reads across equivalent backends, trying each in order until
// one answers. It does not retry a single backend; callers own backoff.
type Client struct {
	backends []Backend
}

// Dial connects to the given RPC endpoints. Endpoints that fail to dial are
// skipped; at least one must connect.
func Dial(ctx context.Context, endpoints []string) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fault.New(fault.InvalidInput, "chain.Dial", "no RPC endpoints configured")
	}
	var backends []Backend
	var lastErr error
	for _, ep := range endpoints {
		ec, err := ethclient.DialContext(ctx, ep)
		if err != nil {
			lastErr = fmt.Errorf("dial %s: %w", ep, err)
			continue
		}
		backends = append(backends, ec)
	}
	if len(backends) == 0 {
		return nil, fault.Wrap(fault.NetworkUnavailable, "chain.Dial", lastErr)
	}
	return &Client{backends: backends}, nil
}

// NewWithBackends builds a client over pre-constructed backends.
func NewWithBackends(backends ...Backend) *Client {
	return &Client{backends: backends}
}

// CodeAt returns the code at the account, or empty for an undeployed one.
func (c *Client) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	var out []byte
	err := c.each(ctx, "chain.CodeAt", func(b Backend) error {
		code, err := b.CodeAt(ctx, account, nil)
		if err != nil {
			return err
		}
		out = code
		return nil
	})
	return out, err
}

// BalanceAt returns the native balance of the account in the smallest unit.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.each(ctx, "chain.BalanceAt", func(b Backend) error {
		bal, err := b.BalanceAt(ctx, account, nil)
		if err != nil {
			return err
		}
		out = bal
		return nil
	})
	return out, err
}

// CallContract executes a read-only call against to.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.each(ctx, "chain.CallContract", func(b Backend) error {
		ret, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err != nil {
			return err
		}
		out = ret
		return nil
	})
	return out, err
}

// each runs fn against backends in order until one succeeds. A revert is a
// deterministic answer from the chain, not an endpoint problem, so it is
// surfaced immediately without failover.
func (c *Client) each(ctx context.Context, op string, fn func(Backend) error) error {
	var lastErr error
	for _, b := range c.backends {
		err := fn(b)
		if err == nil {
			return nil
		}
		if isRevert(err) {
			return fault.Wrap(fault.InvalidInput, op, err)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fault.Wrap(fault.NetworkUnavailable, op, lastErr)
}

func isRevert(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return strings.Contains(err.Error(), "execution reverted")
}

// Compile-time assertion that Client implements domain.ChainReader.
var _ domain.ChainReader = (*Client)(nil)
