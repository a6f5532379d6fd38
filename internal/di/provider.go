package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/config"
	"github.com/LeJamon/goPresale/internal/core/eligibility"
	"github.com/LeJamon/goPresale/internal/core/pricing"
	"github.com/LeJamon/goPresale/internal/core/sale"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/grpc"
	"github.com/LeJamon/goPresale/internal/lock"
	"github.com/LeJamon/goPresale/internal/metrics"
	"github.com/LeJamon/goPresale/internal/rpc"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb/sqldb"
)

// Version is reported by server_info.
var Version = "0.1.0-dev"

// Provider configures and registers services in the container.
type Provider struct {
	container *Container
	config    *config.Config
	logger    *zap.Logger
}

// NewProvider creates a new service provider.
func NewProvider(container *Container, cfg *config.Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		container: container,
		config:    cfg,
		logger:    logger,
	}
}

// RegisterAll registers all services.
func (p *Provider) RegisterAll() error {
	p.container.Register(ServiceConfig, p.config)
	p.container.Register(ServiceLogger, p.logger)

	p.registerStorageBuilders()
	p.registerSaleBuilders()
	p.registerRPCBuilders()
	p.registerGRPCBuilder()

	return nil
}

// registerStorageBuilders registers storage service builders.
func (p *Provider) registerStorageBuilders() {
	p.container.RegisterBuilder(ServiceStore, func(c *Container) (interface{}, error) {
		store, err := sqldb.NewRepositoryManager(p.config.Database.Relational())
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Open(ctx); err != nil {
			return nil, err
		}
		c.OnClose(func() error { return store.Close(context.Background()) })
		p.logger.Info("settlement store opened", zap.String("driver", store.Driver()))
		return store, nil
	})

	p.container.RegisterBuilder(ServiceEligibility, func(c *Container) (interface{}, error) {
		db, err := eligibility.OpenStore(p.config.Eligibility)
		if err != nil {
			return nil, fmt.Errorf("open eligibility store: %w", err)
		}
		registry := eligibility.NewRegistry(db, p.logger, nil)
		c.OnClose(registry.Close)
		return registry, nil
	})

	p.container.RegisterBuilder(ServiceLocker, func(c *Container) (interface{}, error) {
		locker, err := lock.New(p.config.Lock)
		if err != nil {
			return nil, err
		}
		if closer, ok := locker.(io.Closer); ok {
			c.OnClose(closer.Close)
		}
		return locker, nil
	})
}

// registerSaleBuilders registers the settlement engine and its collaborators.
func (p *Provider) registerSaleBuilders() {
	p.container.RegisterBuilder(ServiceMetrics, func(c *Container) (interface{}, error) {
		if !p.config.Metrics.Enabled {
			return (*metrics.Metrics)(nil), nil
		}
		return metrics.New(), nil
	})

	p.container.RegisterBuilder(ServicePrices, func(c *Container) (interface{}, error) {
		return pricing.NewResolver(p.config.Oracle.Resolver(), nil)
	})

	p.container.RegisterBuilder(ServiceAssets, func(c *Container) (interface{}, error) {
		return p.config.AssetTable()
	})

	p.container.RegisterBuilder(ServiceEngine, func(c *Container) (interface{}, error) {
		store, err := c.Get(ServiceStore)
		if err != nil {
			return nil, err
		}
		kyc, err := c.Get(ServiceEligibility)
		if err != nil {
			return nil, err
		}
		prices, err := c.Get(ServicePrices)
		if err != nil {
			return nil, err
		}
		assets, err := c.Get(ServiceAssets)
		if err != nil {
			return nil, err
		}
		locker, err := c.Get(ServiceLocker)
		if err != nil {
			return nil, err
		}
		m, err := c.Get(ServiceMetrics)
		if err != nil {
			return nil, err
		}

		engine, err := sale.New(p.config.Engine(), sale.Deps{
			Store:       store.(*sqldb.RepositoryManager),
			Eligibility: kyc.(*eligibility.Registry),
			Prices:      prices.(*pricing.Resolver),
			Assets:      assets.(*types.AssetTable),
			Locker:      locker.(lock.Locker),
			Metrics:     m.(*metrics.Metrics),
			Logger:      p.logger,
		})
		if err != nil {
			return nil, err
		}
		if err := engine.Open(context.Background()); err != nil {
			return nil, err
		}
		return engine, nil
	})
}

// registerRPCBuilders registers RPC service builders.
func (p *Provider) registerRPCBuilders() {
	p.container.RegisterBuilder(ServiceRPCServer, func(c *Container) (interface{}, error) {
		engine, err := p.Engine()
		if err != nil {
			return nil, err
		}
		m, err := c.Get(ServiceMetrics)
		if err != nil {
			return nil, err
		}
		server := p.config.Server
		return rpc.NewServer(rpc.Config{
			Timeout:           server.Timeout,
			AdminIPs:          server.Admin,
			RequestsPerSecond: server.RequestsPerSecond,
			Burst:             server.Burst,
			MaxBodyBytes:      server.MaxBodyBytes,
		}, &rpc_types.ServiceContainer{
			Sale:        engine,
			Eligibility: engine.Eligibility.(*eligibility.Registry),
			Version:     Version,
			StartedAt:   time.Now(),
		}, p.logger, m.(*metrics.Metrics))
	})

	p.container.RegisterBuilder(ServiceWebSocket, func(c *Container) (interface{}, error) {
		server, err := p.RPCServer()
		if err != nil {
			return nil, err
		}
		engine, err := p.Engine()
		if err != nil {
			return nil, err
		}
		ws := rpc.NewWebSocketServer(server)
		engine.Publisher = rpc.NewPublisher(ws)
		c.OnClose(func() error {
			ws.Close()
			return nil
		})
		return ws, nil
	})
}

// registerGRPCBuilder registers the gRPC health server. Its checks report
// whether the settlement store answers and whether the system record exists.
func (p *Provider) registerGRPCBuilder() {
	p.container.RegisterBuilder(ServiceGRPC, func(c *Container) (interface{}, error) {
		store, err := c.Get(ServiceStore)
		if err != nil {
			return nil, err
		}
		engine, err := p.Engine()
		if err != nil {
			return nil, err
		}
		m, err := c.Get(ServiceMetrics)
		if err != nil {
			return nil, err
		}

		server, err := grpc.NewServer(p.config.GRPC.ServerConfig(), p.logger, m.(*metrics.Metrics))
		if err != nil {
			return nil, err
		}
		server.AddCheck(HealthStore, store.(*sqldb.RepositoryManager).Ping)
		server.AddCheck(HealthEngine, func(ctx context.Context) error {
			_, err := engine.System(ctx)
			return err
		})
		c.OnClose(func() error {
			server.Stop()
			return nil
		})
		return server, nil
	})
}

// Health service names reported by the gRPC server.
const (
	HealthStore  = "presaled.store"
	HealthEngine = "presaled.engine"
)

// Engine returns the settlement engine from the container.
func (p *Provider) Engine() (*sale.Engine, error) {
	svc, err := p.container.Get(ServiceEngine)
	if err != nil {
		return nil, err
	}
	return svc.(*sale.Engine), nil
}

// RPCServer returns the JSON-RPC server from the container.
func (p *Provider) RPCServer() (*rpc.Server, error) {
	svc, err := p.container.Get(ServiceRPCServer)
	if err != nil {
		return nil, err
	}
	return svc.(*rpc.Server), nil
}

// WebSocket returns the websocket server, installing it as the engine's
// settlement publisher.
func (p *Provider) WebSocket() (*rpc.WebSocketServer, error) {
	svc, err := p.container.Get(ServiceWebSocket)
	if err != nil {
		return nil, err
	}
	return svc.(*rpc.WebSocketServer), nil
}

// GRPCServer returns the gRPC health server from the container.
func (p *Provider) GRPCServer() (*grpc.Server, error) {
	svc, err := p.container.Get(ServiceGRPC)
	if err != nil {
		return nil, err
	}
	return svc.(*grpc.Server), nil
}

// GetConfig returns the configuration from the container.
func (p *Provider) GetConfig() *config.Config {
	return p.config
}
