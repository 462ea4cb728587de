package commands

import (
	"github.com/spf13/cobra"

	"agentpay/internal/app"
)

var (
	configPath string
	home       string
	rpcList    []string
	bundlerURL string
	ownerKey   string
	passphrase string

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "agentpay",
		Short: "Session-key smart account CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Load(configPath)
			if err != nil {
				return err
			}
			if home != "" {
				cfg.Home = home
			}
			if len(rpcList) > 0 {
				cfg.RPCEndpoints = rpcList
			}
			if bundlerURL != "" {
				cfg.BundlerURL = bundlerURL
			}
			if ownerKey != "" {
				cfg.OwnerKeyFile = ownerKey
			}
			if passphrase != "" {
				cfg.Passphrase = passphrase
			}
			wire, err = app.NewWire(cmd.Context(), cfg)
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config YAML path")
	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.agentpay)")
	root.PersistentFlags().StringSliceVar(&rpcList, "rpc", nil, "chain RPC endpoints, in failover order")
	root.PersistentFlags().StringVar(&bundlerURL, "bundler", "", "bundler RPC endpoint")
	root.PersistentFlags().StringVar(&ownerKey, "owner-key", "", "owner key file (hex, 0600)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "vault passphrase (prefer AGENTPAY_PASSPHRASE)")

	root.AddCommand(addressCmd(), installCmd(), rotateCmd(), revokeCmd(), sendCmd(), sendTokenCmd(), balanceCmd())
	return root.Execute()
}
