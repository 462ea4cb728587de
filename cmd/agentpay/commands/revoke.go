package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentpay/internal/domain"
)

// revoke <identity>: disable the session key on-chain and drop the grant.
func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <identity>",
		Short: "Revoke an identity's session authorization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txHash, err := wire.Sessions.Revoke(cmd.Context(), wire.Owner, domain.Identity(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("revoked, tx %s\n", txHash)
			return nil
		},
	}
}
