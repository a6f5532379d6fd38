package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/LeJamon/goPresale/internal/grpc"
)

// GRPCConfig represents the [grpc] section
// The gRPC listener only carries the health and reflection services
type GRPCConfig struct {
	Enabled        bool          `toml:"enabled" mapstructure:"enabled"`
	Bind           string        `toml:"bind" mapstructure:"bind"`
	Port           int           `toml:"port" mapstructure:"port"`
	MaxRecvMsgSize int           `toml:"max_recv_msg_size" mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int           `toml:"max_send_msg_size" mapstructure:"max_send_msg_size"`
	CheckInterval  time.Duration `toml:"check_interval" mapstructure:"check_interval"`
}

// Address returns the host:port the gRPC server listens on
func (g *GRPCConfig) Address() string {
	return net.JoinHostPort(g.Bind, strconv.Itoa(g.Port))
}

// ServerConfig converts the section into the gRPC server configuration
func (g *GRPCConfig) ServerConfig() *grpc.ServerConfig {
	return &grpc.ServerConfig{
		Address:        g.Address(),
		MaxRecvMsgSize: g.MaxRecvMsgSize,
		MaxSendMsgSize: g.MaxSendMsgSize,
		CheckInterval:  g.CheckInterval,
	}
}

// Validate performs validation on the gRPC configuration
func (g *GRPCConfig) Validate() error {
	if !g.Enabled {
		return nil
	}
	if g.Port <= 0 || g.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", g.Port)
	}
	return g.ServerConfig().Validate()
}
