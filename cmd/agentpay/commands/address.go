package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentpay/internal/domain"
)

// address <identity>: resolve the counterfactual account address.
func addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <identity>",
		Short: "Resolve an identity's smart account address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := wire.Accounts.ResolveAddress(cmd.Context(), domain.Identity(args[0]))
			if err != nil {
				return err
			}
			state := "counterfactual"
			if acct.OwnerInstalled {
				state = "deployed"
			}
			fmt.Printf("%s (slot %d, %s)\n", acct.Address, acct.Slot, state)
			return nil
		},
	}
}
