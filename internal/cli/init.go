package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/sale"
)

var (
	initAuthority string
	initToken     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the sale system record",
	Long: `Write the system record: the authority, the sale token and the initial
rate limits. The registry, custody vault and vesting pool addresses are
derived from the authority. A store can only be initialized once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode(true)
		if err != nil {
			return err
		}
		defer n.Close()

		if initAuthority != "" {
			n.cfg.Authority = initAuthority
		}
		if initToken != "" {
			n.cfg.Sale.Token = initToken
		}
		authority, err := n.cfg.AuthorityAddress()
		if err != nil {
			return err
		}
		token, err := n.cfg.Sale.TokenAddress()
		if err != nil {
			return err
		}
		limits, err := n.cfg.RateLimit.Limiter()
		if err != nil {
			return fmt.Errorf("rate_limit: %w", err)
		}

		engine, err := n.provider.Engine()
		if err != nil {
			return err
		}
		state, err := engine.Initialize(cmd.Context(), sale.InitParams{
			Authority: authority,
			SaleToken: token,
			RateLimit: limits,
		})
		if err != nil {
			return err
		}
		n.logger.Info("sale initialized",
			zap.Stringer("authority", state.Authority),
			zap.Stringer("registry", state.Registry))
		return printJSON(cmd.OutOrStdout(), state)
	},
}

func init() {
	initCmd.Flags().StringVar(&initAuthority, "authority", "", "authority address (overrides authority)")
	initCmd.Flags().StringVar(&initToken, "token", "", "sale token address (overrides sale.token)")
	rootCmd.AddCommand(initCmd)
}
