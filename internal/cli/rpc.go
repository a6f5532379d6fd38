package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// rpcCmd represents the rpc command group
var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Run RPC methods locally",
	Long: `Execute RPC methods in-process against the configured store, using the
same handlers as the server. Commands run with admin rights.`,
}

func init() {
	rootCmd.AddCommand(rpcCmd)
}

// callMethod runs method through a freshly opened node and prints the
// result as indented JSON.
func callMethod(cmd *cobra.Command, method string, params interface{}) error {
	n, err := openNode(true)
	if err != nil {
		return err
	}
	defer n.Close()

	server, err := n.provider.RPCServer()
	if err != nil {
		return err
	}
	result, rpcErr := server.Call(cmd.Context(), method, params)
	if rpcErr != nil {
		return fmt.Errorf("RPC error [%d] %s: %s", rpcErr.Code, rpcErr.ErrorString, rpcErr.Message)
	}
	if result == nil {
		return nil
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func parseIndex(arg string) (uint64, error) {
	index, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid round index %q", arg)
	}
	return index, nil
}

// parseTime accepts unix seconds or RFC 3339.
func parseTime(arg string) (uint64, error) {
	if secs, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return secs, nil
	}
	t, err := time.Parse(time.RFC3339, arg)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: use unix seconds or RFC 3339", arg)
	}
	if t.Unix() < 0 {
		return 0, fmt.Errorf("time %q is before the epoch", arg)
	}
	return uint64(t.Unix()), nil
}

// noArgsCmd runs a method without parameters.
func noArgsCmd(method, short string) *cobra.Command {
	return &cobra.Command{
		Use:   method,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callMethod(cmd, method, nil)
		},
	}
}

// roundCmd runs a method taking {"round": index}.
func roundCmd(method, short string) *cobra.Command {
	return &cobra.Command{
		Use:   method + " <round>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return callMethod(cmd, method, map[string]interface{}{"round": index})
		},
	}
}

// addressCmd runs a method taking {"address": address}.
func addressCmd(method, short string) *cobra.Command {
	return &cobra.Command{
		Use:   method + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callMethod(cmd, method, map[string]interface{}{"address": args[0]})
		},
	}
}

// =============================================================================
// ROUND COMMANDS
// =============================================================================

var roundInfoCmd = &cobra.Command{
	Use:   "round_info <round|address>",
	Short: "Show a round by index or address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if index, err := strconv.ParseUint(args[0], 10, 64); err == nil {
			return callMethod(cmd, "round_info", map[string]interface{}{"round": index})
		}
		return callMethod(cmd, "round_info", map[string]interface{}{"address": args[0]})
	},
}

var roundCreateFlags struct {
	name      string
	price     string
	hardCap   string
	start     string
	end       string
	cliff     time.Duration
	vesting   time.Duration
	oracle    string
	authorize bool
	inactive  bool
}

var roundCreateCmd = &cobra.Command{
	Use:   "round_create",
	Short: "Create a sale round",
	Example: `  presaled rpc round_create --name Seed --price 0.05 --hard-cap 250000 \
    --start 2026-11-01T00:00:00Z --end 2026-12-01T00:00:00Z \
    --cliff 720h --vesting 4320h --authorize`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := roundCreateFlags
		start := uint64(time.Now().Unix())
		if f.start != "" {
			var err error
			if start, err = parseTime(f.start); err != nil {
				return err
			}
		}
		end, err := parseTime(f.end)
		if err != nil {
			return err
		}
		return callMethod(cmd, "round_create", map[string]interface{}{
			"name":             f.name,
			"token_price_usd":  f.price,
			"hard_cap_usd":     f.hardCap,
			"start_time":       start,
			"end_time":         end,
			"cliff_duration":   uint64(f.cliff / time.Second),
			"vesting_duration": uint64(f.vesting / time.Second),
			"is_active":        !f.inactive,
			"oracle":           f.oracle,
			"authorize":        f.authorize,
		})
	},
}

var roundUpdateOracleCmd = &cobra.Command{
	Use:   "round_update_oracle <round> <oracle>",
	Short: "Point a round at a different price feed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		return callMethod(cmd, "round_update_oracle", map[string]interface{}{"round": index, "oracle": args[1]})
	},
}

// =============================================================================
// PURCHASE COMMANDS
// =============================================================================

func buyParams(args []string) (map[string]interface{}, error) {
	index, err := parseIndex(args[0])
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{
		"round":  index,
		"buyer":  args[1],
		"asset":  args[2],
		"amount": args[3],
	}
	if len(args) > 4 {
		params["referrer"] = args[4]
	}
	return params, nil
}

var buyCmd = &cobra.Command{
	Use:   "buy <round> <buyer> <asset> <amount> [referrer]",
	Short: "Buy sale tokens; amount is in the asset's base units",
	Args:  cobra.RangeArgs(4, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := buyParams(args)
		if err != nil {
			return err
		}
		return callMethod(cmd, "buy", params)
	},
}

var diagnosePurchaseCmd = &cobra.Command{
	Use:   "diagnose_purchase <round> <buyer> <asset> <amount> [referrer]",
	Short: "Report every check a purchase would fail, without buying",
	Args:  cobra.RangeArgs(4, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := buyParams(args)
		if err != nil {
			return err
		}
		return callMethod(cmd, "diagnose_purchase", params)
	},
}

var purchaseInfoCmd = &cobra.Command{
	Use:   "purchase_info <round> [buyer]",
	Short: "Show a buyer's purchase record, or every record of a round",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		params := map[string]interface{}{"round": index}
		if len(args) > 1 {
			params["buyer"] = args[1]
		}
		return callMethod(cmd, "purchase_info", params)
	},
}

var settlementsCmd = &cobra.Command{
	Use:   "settlements <round> [marker] [limit]",
	Short: "Page through a round's settlements",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		params := map[string]interface{}{"round": index}
		if len(args) > 1 {
			marker, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid marker %q", args[1])
			}
			params["marker"] = marker
		}
		if len(args) > 2 {
			limit, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[2])
			}
			params["limit"] = limit
		}
		return callMethod(cmd, "settlements", params)
	},
}

// =============================================================================
// KYC COMMANDS
// =============================================================================

func kycBatchCmd(method, short string) *cobra.Command {
	return &cobra.Command{
		Use:   method + " <address>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callMethod(cmd, method, map[string]interface{}{"addresses": args})
		},
	}
}

var kycCheckCmd = &cobra.Command{
	Use:   "kyc_check [address]",
	Short: "Check one address, or list every eligible address",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params map[string]interface{}
		if len(args) > 0 {
			params = map[string]interface{}{"address": args[0]}
		}
		return callMethod(cmd, "kyc_check", params)
	},
}

// =============================================================================
// RATE LIMIT COMMANDS
// =============================================================================

var rateLimitInfoCmd = &cobra.Command{
	Use:   "rate_limit_info [address]",
	Short: "Show the rate limit configuration, or a buyer's usage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params map[string]interface{}
		if len(args) > 0 {
			params = map[string]interface{}{"address": args[0]}
		}
		return callMethod(cmd, "rate_limit_info", params)
	},
}

var rateLimitConfigCmd = &cobra.Command{
	Use:   "rate_limit_config <min_time_between_tx> <max_tx_per_period> <period>",
	Short: "Update purchase pacing; durations like 30s or 24h",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		minTime, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid min_time_between_tx: %w", err)
		}
		maxTx, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid max_tx_per_period %q", args[1])
		}
		period, err := time.ParseDuration(args[2])
		if err != nil {
			return fmt.Errorf("invalid period: %w", err)
		}
		return callMethod(cmd, "rate_limit_config", map[string]interface{}{
			"min_time_between_tx": uint64(minTime / time.Second),
			"max_tx_per_period":   maxTx,
			"period":              uint64(period / time.Second),
		})
	},
}

var rateLimitDailyCapCmd = &cobra.Command{
	Use:   "rate_limit_daily_cap <usd>",
	Short: "Update the per-buyer daily spending cap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callMethod(cmd, "rate_limit_daily_cap", map[string]interface{}{"max_daily_spend_usd": args[0]})
	},
}

// =============================================================================
// CUSTODY AND ASSET COMMANDS
// =============================================================================

var custodyWithdrawCmd = &cobra.Command{
	Use:   "custody_withdraw <asset> <to> <amount>",
	Short: "Withdraw raised funds from the vault",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callMethod(cmd, "custody_withdraw", map[string]interface{}{
			"asset": args[0], "to": args[1], "amount": args[2],
		})
	},
}

var assetBalanceCmd = &cobra.Command{
	Use:   "asset_balance <asset> <owner> [spender]",
	Short: "Show a balance, and an allowance when spender is given",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{"asset": args[0], "owner": args[1]}
		if len(args) > 2 {
			params["spender"] = args[2]
		}
		return callMethod(cmd, "asset_balance", params)
	},
}

var assetApproveCmd = &cobra.Command{
	Use:   "asset_approve <asset> <owner> <spender> <amount>",
	Short: "Set an allowance",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callMethod(cmd, "asset_approve", map[string]interface{}{
			"asset": args[0], "owner": args[1], "spender": args[2], "amount": args[3],
		})
	},
}

var assetCreditCmd = &cobra.Command{
	Use:   "asset_credit <asset> <owner> <amount>",
	Short: "Credit a balance",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callMethod(cmd, "asset_credit", map[string]interface{}{
			"asset": args[0], "owner": args[1], "amount": args[2],
		})
	},
}

// =============================================================================
// GENERIC JSON COMMAND
// =============================================================================

var jsonCmd = &cobra.Command{
	Use:   "json <method> [params]",
	Short: "Run any method with a JSON object of parameters",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return callMethod(cmd, args[0], nil)
		}
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("params is not valid JSON")
		}
		return callMethod(cmd, args[0], json.RawMessage(args[1]))
	},
}

// =============================================================================
// ADD ALL COMMANDS
// =============================================================================

func init() {
	f := roundCreateCmd.Flags()
	f.StringVar(&roundCreateFlags.name, "name", "", "round name")
	f.StringVar(&roundCreateFlags.price, "price", "", "token price in USD")
	f.StringVar(&roundCreateFlags.hardCap, "hard-cap", "", "hard cap in USD")
	f.StringVar(&roundCreateFlags.start, "start", "", "start time (default now)")
	f.StringVar(&roundCreateFlags.end, "end", "", "end time")
	f.DurationVar(&roundCreateFlags.cliff, "cliff", 0, "vesting cliff")
	f.DurationVar(&roundCreateFlags.vesting, "vesting", 0, "linear vesting duration after the cliff")
	f.StringVar(&roundCreateFlags.oracle, "oracle", "", "price feed (default oracle.default)")
	f.BoolVar(&roundCreateFlags.authorize, "authorize", false, "grant the round its ledger capabilities")
	f.BoolVar(&roundCreateFlags.inactive, "inactive", false, "create the round paused")
	_ = roundCreateCmd.MarkFlagRequired("price")
	_ = roundCreateCmd.MarkFlagRequired("hard-cap")
	_ = roundCreateCmd.MarkFlagRequired("end")

	rpcCmd.AddCommand(
		// Server commands
		noArgsCmd("ping", "Ping the server"),
		noArgsCmd("server_info", "Show server and sale status"),

		// Round commands
		noArgsCmd("round_list", "List every round"),
		roundInfoCmd,
		roundCmd("round_capabilities", "Show which ledgers a round may write"),
		roundCreateCmd,
		roundCmd("round_pause", "Pause a round"),
		roundCmd("round_unpause", "Resume a paused round"),
		roundCmd("round_authorize", "Grant a round its ledger capabilities"),
		roundCmd("round_revoke", "Revoke a round's ledger capabilities"),
		roundUpdateOracleCmd,

		// Purchase commands
		buyCmd,
		diagnosePurchaseCmd,
		purchaseInfoCmd,
		settlementsCmd,

		// Account commands
		addressCmd("vesting_info", "Show an address's vesting grants"),
		addressCmd("vesting_claim", "Release vested tokens to an address"),
		addressCmd("referral_info", "Show an address's referral earnings"),

		// KYC commands
		addressCmd("kyc_add", "Mark an address eligible"),
		addressCmd("kyc_remove", "Remove an address's eligibility"),
		kycBatchCmd("kyc_batch_add", "Mark several addresses eligible"),
		kycBatchCmd("kyc_batch_remove", "Remove several addresses' eligibility"),
		kycCheckCmd,

		// Rate limit commands
		rateLimitInfoCmd,
		rateLimitConfigCmd,
		rateLimitDailyCapCmd,
		addressCmd("rate_limit_reset", "Clear a buyer's rate limit usage"),

		// Custody and asset commands
		noArgsCmd("custody_balances", "Show vault balances"),
		custodyWithdrawCmd,
		addressCmd("custody_authorize_depositor", "Allow an address to deposit into the vault"),
		addressCmd("custody_revoke_depositor", "Revoke an address's deposit rights"),
		assetBalanceCmd,
		assetApproveCmd,
		assetCreditCmd,

		// Generic JSON command
		jsonCmd,
	)
}
