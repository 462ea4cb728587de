package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"agentpay/internal/domain"
)

// send-token <identity> <token> <to> <amount>: relay a token transfer. The
// token's precision is read from the contract unless --decimals is given.
func sendTokenCmd() *cobra.Command {
	var decimals int
	cmd := &cobra.Command{
		Use:   "send-token <identity> <token> <to> <amount>",
		Short: "Relay a token transfer through the session key",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := domain.Identity(args[0])
			for _, raw := range args[1:3] {
				if !common.IsHexAddress(raw) {
					return fmt.Errorf("malformed address %q", raw)
				}
			}
			var override *uint8
			if decimals >= 0 {
				if decimals > 255 {
					return fmt.Errorf("decimals out of range: %d", decimals)
				}
				d := uint8(decimals)
				override = &d
			}
			acct, err := wire.Accounts.ResolveAddress(cmd.Context(), identity)
			if err != nil {
				return err
			}
			rec, err := wire.Transfers.SubmitToken(cmd.Context(), acct.Address, identity,
				common.HexToAddress(args[1]), common.HexToAddress(args[2]), args[3], override)
			if err != nil {
				return err
			}
			fmt.Printf("tx %s (request %s)\n", rec.TxHash, rec.RequestID)
			return nil
		},
	}
	cmd.Flags().IntVar(&decimals, "decimals", -1, "token decimals (skips the on-chain decimals() read)")
	return cmd
}
