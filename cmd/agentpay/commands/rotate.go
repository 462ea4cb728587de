package commands

import (
	"github.com/spf13/cobra"

	"agentpay/internal/domain"
)

// rotate <identity>: replace the session key and re-install it with a fresh
// policy set. The superseded key stays valid on-chain until revoked or its
// window closes.
func rotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate <identity>",
		Short: "Rotate the session key and re-install",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := installParams()
			if err != nil {
				return err
			}
			res, err := wire.Sessions.Rotate(cmd.Context(), wire.Owner, domain.Identity(args[0]), params)
			if err != nil {
				return err
			}
			printInstall(res)
			return nil
		},
	}
	addPolicyFlags(cmd)
	return cmd
}
