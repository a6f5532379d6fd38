package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeJamon/goPresale/internal/config"
	"github.com/LeJamon/goPresale/internal/core/eligibility"
	"github.com/LeJamon/goPresale/internal/core/ratelimit"
	"github.com/LeJamon/goPresale/internal/core/sale"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/lock"
	"github.com/LeJamon/goPresale/internal/log"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

func TestContainerBuildsOnce(t *testing.T) {
	c := New()
	builds := 0
	c.RegisterBuilder("counter", func(c *Container) (interface{}, error) {
		builds++
		return builds, nil
	})

	first, err := c.Get("counter")
	require.NoError(t, err)
	second, err := c.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, builds)
}

func TestContainerDependencies(t *testing.T) {
	c := New()
	c.Register("base", "db")
	c.RegisterBuilder("service", func(c *Container) (interface{}, error) {
		base, err := c.Get("base")
		if err != nil {
			return nil, err
		}
		return base.(string) + "+service", nil
	})

	svc, err := c.Get("service")
	require.NoError(t, err)
	assert.Equal(t, "db+service", svc)
	assert.True(t, c.Has("service"))
	assert.False(t, c.Has("missing"))
	assert.Equal(t, []string{"base", "service"}, c.ServiceNames())
}

func TestContainerErrors(t *testing.T) {
	c := New()
	_, err := c.Get("missing")
	assert.Error(t, err)
	assert.Panics(t, func() { c.MustGet("missing") })

	boom := errors.New("boom")
	c.RegisterBuilder("broken", func(c *Container) (interface{}, error) { return nil, boom })
	_, err = c.Get("broken")
	assert.ErrorIs(t, err, boom)
}

func TestContainerCloseOrder(t *testing.T) {
	c := New()
	var order []string
	c.OnClose(func() error { order = append(order, "store"); return nil })
	c.OnClose(func() error { order = append(order, "engine"); return errors.New("engine") })
	c.OnClose(func() error { order = append(order, "server"); return nil })

	err := c.Close()
	assert.EqualError(t, err, "engine")
	assert.Equal(t, []string{"server", "engine", "store"}, order)

	require.NoError(t, c.Close(), "closers run once")
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Bind:      "127.0.0.1",
			Port:      5005,
			Admin:     []string{"127.0.0.1"},
			WebSocket: true,
		},
		Database: config.DatabaseConfig{
			Driver: relationaldb.DriverSQLite,
			Path:   relationaldb.MemoryDatabase,
		},
		Eligibility: eligibility.Config{Backend: eligibility.BackendMemory},
		Sale:        config.SaleConfig{ReferralBonusBps: 500, RoundCacheSize: 16},
		Oracle: config.OracleConfig{
			Default: "static:3000",
			MaxAge:  time.Hour,
			Timeout: time.Second,
		},
		Lock:    lock.Config{Backend: lock.BackendLocal},
		Log:     log.DefaultConfig(),
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestProviderWiring(t *testing.T) {
	c := New()
	p := NewProvider(c, testConfig(), nil)
	require.NoError(t, p.RegisterAll())

	engine, err := p.Engine()
	require.NoError(t, err)
	assert.Nil(t, engine.Publisher)

	server, err := p.RPCServer()
	require.NoError(t, err)
	assert.Contains(t, server.Methods(), "buy")

	ws, err := p.WebSocket()
	require.NoError(t, err)
	assert.NotNil(t, ws)
	assert.NotNil(t, engine.Publisher, "the websocket server publishes settlements")

	again, err := p.Engine()
	require.NoError(t, err)
	assert.Same(t, engine, again)

	assert.NoError(t, c.Close())
}

func TestGRPCHealthWiring(t *testing.T) {
	cfg := testConfig()
	cfg.GRPC = config.GRPCConfig{
		Enabled:        true,
		Bind:           "127.0.0.1",
		Port:           0,
		MaxRecvMsgSize: 1 << 20,
		MaxSendMsgSize: 1 << 20,
		CheckInterval:  time.Hour,
	}
	c := New()
	p := NewProvider(c, cfg, nil)
	require.NoError(t, p.RegisterAll())
	t.Cleanup(func() { c.Close() })

	server, err := p.GRPCServer()
	require.NoError(t, err)
	assert.Equal(t, []string{HealthEngine, HealthStore}, server.Services())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Start(ctx))

	conn, err := grpc.NewClient(server.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)
	status := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(HealthStore))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(HealthEngine), "not initialized yet")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(""))

	engine, err := p.Engine()
	require.NoError(t, err)
	_, err = engine.Initialize(ctx, sale.InitParams{
		Authority: types.MustParseAddress("0x00000000000000000000000000000000000000a1"),
		SaleToken: types.MustParseAddress("0x00000000000000000000000000000000000000e7"),
		RateLimit: ratelimit.DefaultConfig(),
	})
	require.NoError(t, err)
	server.Refresh(ctx)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(HealthEngine))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(""))
}
