package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"agentpay/internal/domain"
)

// balance <identity|address>: read a native balance. An identity argument is
// resolved to its account address first.
func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <identity|address>",
		Short: "Read a native balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := common.HexToAddress(args[0])
			if !common.IsHexAddress(args[0]) {
				acct, err := wire.Accounts.ResolveAddress(cmd.Context(), domain.Identity(args[0]))
				if err != nil {
					return err
				}
				addr = acct.Address
			}
			bal, err := wire.Balances.Native(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s wei)\n", bal.Formatted, bal.Wei)
			return nil
		},
	}
}
