package grpc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/LeJamon/goPresale/internal/metrics"
)

func testConfig() *ServerConfig {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.CheckInterval = time.Hour
	return cfg
}

func dial(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient(s.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultServerConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"empty address", func(c *ServerConfig) { c.Address = "" }},
		{"no port", func(c *ServerConfig) { c.Address = "127.0.0.1" }},
		{"no host", func(c *ServerConfig) { c.Address = ":50051" }},
		{"zero recv", func(c *ServerConfig) { c.MaxRecvMsgSize = 0 }},
		{"zero send", func(c *ServerConfig) { c.MaxSendMsgSize = 0 }},
		{"zero interval", func(c *ServerConfig) { c.CheckInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestHealthFollowsChecks(t *testing.T) {
	s, err := NewServer(testConfig(), nil, metrics.New())
	require.NoError(t, err)

	var storeDown atomic.Bool
	s.AddCheck("presaled.store", func(ctx context.Context) error {
		if storeDown.Load() {
			return errors.New("database is closed")
		}
		return nil
	})
	s.AddCheck("presaled.engine", func(ctx context.Context) error { return nil })
	assert.Equal(t, []string{"presaled.engine", "presaled.store"}, s.Services())

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	assert.True(t, s.IsRunning())
	client := dial(t, s)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, "presaled.store"))

	storeDown.Store(true)
	s.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, "presaled.store"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, "presaled.engine"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))

	storeDown.Store(false)
	s.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
}

func TestUnknownService(t *testing.T) {
	s, err := NewServer(testConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = dial(t, s).Check(ctx, &healthpb.HealthCheckRequest{Service: "presaled.nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestStartStop(t *testing.T) {
	s, err := NewServer(testConfig(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, s.Address())

	require.NoError(t, s.Start(context.Background()))
	assert.NotEmpty(t, s.Address())
	assert.Error(t, s.Start(context.Background()))

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
