package balance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"agentpay/internal/amount"
	"agentpay/internal/domain"
	"agentpay/internal/fault"
)

// Service reads native balances for smart accounts. Read-only and
// unauthorized; a freshly resolved, never-funded address reads as zero.
// The service does not retry; callers back off and call again. Endpoint
// failover happens inside the chain client.
type Service struct {
	chain domain.ChainReader
}

// New constructs a balance service.
func New(chain domain.ChainReader) *Service { return &Service{chain: chain} }

// Native returns the account's balance in the smallest unit and as a human
// decimal string.
func (s *Service) Native(ctx context.Context, acct common.Address) (domain.Balance, error) {
	if acct == (common.Address{}) {
		return domain.Balance{}, fault.New(fault.InvalidInput, "balance.Native", "account address is zero")
	}
	wei, err := s.chain.BalanceAt(ctx, acct)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.Balance{
		Wei:       wei.String(),
		Formatted: amount.FormatUnits(wei, amount.NativeDecimals),
	}, nil
}

// Compile-time assertion that Service implements domain.BalanceService.
var _ domain.BalanceService = (*Service)(nil)
