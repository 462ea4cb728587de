package commands

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"agentpay/internal/amount"
	"agentpay/internal/domain"
)

var (
	validFor   time.Duration
	targets    []string
	valueLimit string
	windowOnly bool
)

// install <identity>: provision a session key and register it on-chain with
// a policy set built from the flags.
func installCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <identity>",
		Short: "Install a session authorization for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := installParams()
			if err != nil {
				return err
			}
			res, err := wire.Sessions.Install(cmd.Context(), wire.Owner, domain.Identity(args[0]), params)
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

func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&validFor, "valid-for", 24*time.Hour, "session key lifetime")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "allowed call target (repeatable)")
	cmd.Flags().StringVar(&valueLimit, "value-limit", "", "per-call value ceiling in native units")
	cmd.Flags().BoolVar(&windowOnly, "window-only", false, "allow any call within the time window (no call policies)")
}

// installParams assembles the policy set from the shared flags.
func installParams() (domain.InstallParams, error) {
	now := uint64(time.Now().Unix())
	policies := []domain.Policy{domain.TimeWindowPolicy{
		ValidAfter: now,
		ValidUntil: now + uint64(validFor.Seconds()),
	}}

	for _, raw := range targets {
		if !common.IsHexAddress(raw) {
			return domain.InstallParams{}, fmt.Errorf("malformed target address %q", raw)
		}
		policy := domain.CallPolicy{Target: common.HexToAddress(raw)}
		if valueLimit != "" {
			wei, err := amount.ParseUnits(valueLimit, amount.NativeDecimals)
			if err != nil {
				return domain.InstallParams{}, err
			}
			policy.ValueLimit = wei
		}
		policies = append(policies, policy)
	}
	return domain.InstallParams{Policies: policies, AllowTimeWindowOnly: windowOnly}, nil
}

func printInstall(res domain.InstallResult) {
	fmt.Printf("account  %s\n", res.Account.Address)
	fmt.Printf("session  %s\n", res.SessionAddress)
	fmt.Printf("tx       %s\n", res.TxHash)
}
