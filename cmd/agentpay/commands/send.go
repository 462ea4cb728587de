package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"agentpay/internal/amount"
	"agentpay/internal/domain"
)

// send <identity> <to> <amount>: relay a native transfer signed with the
// identity's session key. The owner is not involved.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <identity> <to> <amount>",
		Short: "Relay a native transfer through the session key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := domain.Identity(args[0])
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("malformed recipient address %q", args[1])
			}
			wei, err := amount.ParseUnits(args[2], amount.NativeDecimals)
			if err != nil {
				return err
			}
			acct, err := wire.Accounts.ResolveAddress(cmd.Context(), identity)
			if err != nil {
				return err
			}
			rec, err := wire.Transfers.SubmitNative(cmd.Context(), acct.Address, identity, common.HexToAddress(args[1]), wei)
			if err != nil {
				return err
			}
			fmt.Printf("tx %s (request %s)\n", rec.TxHash, rec.RequestID)
			return nil
		},
	}
}
