package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/config"
	"github.com/LeJamon/goPresale/internal/di"
	"github.com/LeJamon/goPresale/internal/log"
)

var (
	// Global flags
	configFile string
	debug      bool
	verbose    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "presaled",
	Short: "presaled - token presale settlement daemon",
	Long: `presaled runs token presale rounds: it prices contributions in native
currency or stablecoins, checks eligibility and per-buyer limits, settles
purchases atomically and schedules vesting and referral bonuses.

Running without a subcommand starts the server.`,
	Version:       di.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (default ./presaled.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadConfig(config.ConfigPaths{Main: configFile})
	}
	return config.LoadDefaultConfig()
}

// newLogger applies the command line verbosity to the configured logger.
// One-shot commands stay at warn unless asked otherwise so their output
// remains machine readable.
func newLogger(cfg *config.Config, oneShot bool) *zap.Logger {
	lc := cfg.Log
	switch {
	case debug:
		lc.Level = "debug"
	case verbose:
		lc.Level = "info"
	case quiet, oneShot:
		lc.Level = "warn"
	}
	return log.Must(lc)
}

// node is a configured service container for a single command.
type node struct {
	cfg       *config.Config
	logger    *zap.Logger
	container *di.Container
	provider  *di.Provider
}

func openNode(oneShot bool) (*node, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, oneShot)

	container := di.New()
	provider := di.NewProvider(container, cfg, logger)
	if err := provider.RegisterAll(); err != nil {
		return nil, err
	}
	return &node{cfg: cfg, logger: logger, container: container, provider: provider}, nil
}

func (n *node) Close() error {
	err := n.container.Close()
	_ = n.logger.Sync()
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		_, err = fmt.Fprintf(w, "%+v\n", v)
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
