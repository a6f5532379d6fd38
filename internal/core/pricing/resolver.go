package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResolverConfig controls feed construction and caching.
type ResolverConfig struct {
	Timeout   time.Duration
	MaxAge    time.Duration
	CacheSize int
}

// Resolver turns oracle references into feeds, keeping recently used feeds
// so HTTP feeds keep their request coalescing across purchases.
type Resolver struct {
	cfg   ResolverConfig
	now   func() time.Time
	feeds *lru.Cache[string, Feed]
}

func NewResolver(cfg ResolverConfig, now func() time.Time) (*Resolver, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if now == nil {
		now = time.Now
	}
	feeds, err := lru.New[string, Feed](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg, now: now, feeds: feeds}, nil
}

// Register installs a feed under its reference, replacing any cached one.
func (r *Resolver) Register(feed Feed) {
	r.feeds.Add(feed.Reference(), feed)
}

// Resolve returns the feed for ref.
func (r *Resolver) Resolve(ref string) (Feed, error) {
	if feed, ok := r.feeds.Get(ref); ok {
		return feed, nil
	}
	var feed Feed
	switch {
	case strings.HasPrefix(ref, "static:"):
		f, err := NewStaticFeed(ref, r.now)
		if err != nil {
			return nil, err
		}
		feed = f
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		feed = NewHTTPFeed(ref, r.cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	r.feeds.Add(ref, feed)
	return feed, nil
}

// Latest reads ref and rejects stale answers.
func (r *Resolver) Latest(ctx context.Context, ref string) (Price, error) {
	feed, err := r.Resolve(ref)
	if err != nil {
		return Price{}, err
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	p, err := feed.LatestPrice(ctx)
	if err != nil {
		return Price{}, err
	}
	return p, r.check(p)
}

func (r *Resolver) check(p Price) error {
	if p.Answer == nil || p.Answer.IsZero() {
		return fmt.Errorf("%w: zero answer", ErrPriceUnavailable)
	}
	if r.cfg.MaxAge > 0 && r.now().Sub(p.UpdatedAt) > r.cfg.MaxAge {
		return fmt.Errorf("%w: answer from %s is older than %s", ErrPriceUnavailable,
			p.UpdatedAt.UTC().Format(time.RFC3339), r.cfg.MaxAge)
	}
	return nil
}
