package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/rpc"
)

var (
	// Server flags
	port     int
	bindAddr string
)

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the presale daemon",
	Long: `Start presaled, which provides:
- HTTP JSON-RPC API endpoints
- WebSocket settlement stream
- Health check and Prometheus metrics endpoints
- gRPC health service when [grpc] is enabled

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Set server as the default command
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}

	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	serverCmd.Flags().StringVar(&bindAddr, "bind", "", "address to bind to (overrides server.bind)")
}

func runServer(cmd *cobra.Command, args []string) error {
	n, err := openNode(false)
	if err != nil {
		return err
	}
	defer n.Close()

	if port != 0 {
		n.cfg.Server.Port = port
	}
	if bindAddr != "" {
		n.cfg.Server.Bind = bindAddr
	}

	server, err := n.provider.RPCServer()
	if err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	var ws *rpc.WebSocketServer
	if n.cfg.Server.WebSocket {
		if ws, err = n.provider.WebSocket(); err != nil {
			return fmt.Errorf("start websocket server: %w", err)
		}
	}
	metricsPath := ""
	if n.cfg.Metrics.Enabled {
		metricsPath = n.cfg.Metrics.Path
	}

	grpcAddr := ""
	if n.cfg.GRPC.Enabled {
		gs, err := n.provider.GRPCServer()
		if err != nil {
			return fmt.Errorf("create grpc server: %w", err)
		}
		if err := gs.Start(cmd.Context()); err != nil {
			return fmt.Errorf("start grpc server: %w", err)
		}
		grpcAddr = gs.Address()
	}

	listenAddr := n.cfg.Server.Address()
	if !quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Starting presaled")
		fmt.Fprintln(out, "=================")
		fmt.Fprintf(out, "  - HTTP JSON-RPC: http://%s/\n", listenAddr)
		if ws != nil {
			fmt.Fprintf(out, "  - WebSocket:     ws://%s/ws\n", listenAddr)
		}
		fmt.Fprintf(out, "  - Health Check:  http://%s/health\n", listenAddr)
		if metricsPath != "" {
			fmt.Fprintf(out, "  - Metrics:       http://%s%s\n", listenAddr, metricsPath)
		}
		if grpcAddr != "" {
			fmt.Fprintf(out, "  - gRPC Health:   %s\n", grpcAddr)
		}
		fmt.Fprintf(out, "  - Methods:       %d\n", len(server.Methods()))
		fmt.Fprintln(out)
	}

	n.logger.Info("presaled starting",
		zap.String("version", rootCmd.Version),
		zap.String("addr", listenAddr),
		zap.String("config", n.cfg.GetConfigPath()))
	return rpc.ListenAndServe(cmd.Context(), listenAddr, rpc.Handler(server, ws, metricsPath), n.logger)
}
