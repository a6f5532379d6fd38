// Package di wires the presaled services together.
package di

import (
	"errors"
	"sort"
	"sync"
)

// Container is the dependency injection container.
// It manages service registration and resolution.
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
	builders map[string]Builder
	// closers run in reverse build order on Close
	closers []func() error
}

// Builder is a function that creates a service instance.
type Builder func(c *Container) (interface{}, error)

// New creates a new dependency injection container.
func New() *Container {
	return &Container{
		services: make(map[string]interface{}),
		builders: make(map[string]Builder),
	}
}

// Register registers a service instance.
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterBuilder registers a builder function for lazy instantiation.
func (c *Container) RegisterBuilder(name string, builder Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[name] = builder
}

// OnClose registers a release function for a built service. Builders call
// it for anything holding files, sockets or connections.
func (c *Container) OnClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Get retrieves a service by name, building it on first use. Builders may
// resolve their own dependencies through c.
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	service, exists := c.services[name]
	builder, hasBuilder := c.builders[name]
	c.mu.RUnlock()

	if exists {
		return service, nil
	}
	if !hasBuilder {
		return nil, errors.New("service not found: " + name)
	}

	// Builders run without the lock so they can Get their dependencies.
	service, err := builder(c)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.services[name]; ok {
		return existing, nil
	}
	c.services[name] = service
	return service, nil
}

// MustGet retrieves a service or panics if not found.
func (c *Container) MustGet(name string) interface{} {
	service, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return service
}

// Has checks if a service is registered.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.services[name]
	if exists {
		return true
	}
	_, exists = c.builders[name]
	return exists
}

// ServiceNames returns all registered service names, sorted.
func (c *Container) ServiceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make(map[string]bool)
	for name := range c.services {
		names[name] = true
	}
	for name := range c.builders {
		names[name] = true
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Close releases built services in reverse order and clears the container.
func (c *Container) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.services = make(map[string]interface{})
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Service names constants for type-safe access.
const (
	ServiceConfig      = "config"
	ServiceLogger      = "logger"
	ServiceMetrics     = "metrics"
	ServiceStore       = "relationaldb"
	ServiceEligibility = "eligibility"
	ServicePrices      = "pricing"
	ServiceAssets      = "assets"
	ServiceLocker      = "lock"
	ServiceEngine      = "sale.engine"
	ServiceRPCServer   = "rpc.server"
	ServiceWebSocket   = "rpc.websocket"
	ServiceGRPC        = "grpc.server"
)
