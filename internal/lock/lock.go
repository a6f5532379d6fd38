// Package lock serializes purchases per round, inside one process or across
// processes sharing a database.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// Locker hands out exclusive leases on keys.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned function
	// releases the lease.
	Lock(ctx context.Context, key string) (func(), error)
}

// Config selects the backend.
type Config struct {
	Backend   string        `mapstructure:"backend"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
	Retry     time.Duration `mapstructure:"retry"`
}

// New builds the configured locker.
func New(cfg Config) (Locker, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocal(), nil
	case BackendRedis:
		client, err := Connect(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, cfg.TTL, cfg.Retry), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(key, e, true) }) }, nil
}

func (l *Local) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis leases keys with SET NX PX. A holder that dies loses the lease
// after ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// Connect accepts a redis:// URL or host:port.
func Connect(addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis lock: address is required")
	}
	if opt, err := redis.ParseURL(addr); err == nil {
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func NewRedis(client *redis.Client, ttl, retry time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &Redis{client: client, ttl: ttl, retry: retry, prefix: "presaled:lock:"}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = unlockScript.Run(ctx, r.client, []string{k}, token).Err()
		})
	}, nil
}

// Close shuts the redis client down.
func (r *Redis) Close() error {
	return r.client.Close()
}
