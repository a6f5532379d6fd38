// Package pricing values payment assets in USD. Stable assets are taken at
// par; the native asset is priced through a feed resolved from the round's
// oracle reference.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// FeedDecimals is the precision used by the reference feeds.
const FeedDecimals = 8

var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidReference = errors.New("invalid price feed reference")
	ErrUnknownAsset     = errors.New("unknown payment asset")
)

// Price is a feed answer: Answer / 10^Decimals dollars per whole unit.
type Price struct {
	Answer    *uint256.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// Feed returns the latest price of the native asset.
type Feed interface {
	LatestPrice(ctx context.Context) (Price, error)
	Reference() string
}

func priceFromDecimal(d decimal.Decimal, at time.Time) (Price, error) {
	if !d.IsPositive() {
		return Price{}, fmt.Errorf("%w: non-positive answer %s", ErrPriceUnavailable, d)
	}
	answer, overflow := uint256.FromBig(d.Shift(FeedDecimals).BigInt())
	if overflow || answer.IsZero() {
		return Price{}, fmt.Errorf("%w: answer %s out of range", ErrPriceUnavailable, d)
	}
	return Price{Answer: answer, Decimals: FeedDecimals, UpdatedAt: at}, nil
}

// StaticFeed always answers the same price, stamped with the read time.
type StaticFeed struct {
	ref   string
	price decimal.Decimal
	now   func() time.Time
}

// NewStaticFeed parses "static:<usd>".
func NewStaticFeed(ref string, now func() time.Time) (*StaticFeed, error) {
	raw, ok := strings.CutPrefix(ref, "static:")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidReference, ref, err)
	}
	if now == nil {
		now = time.Now
	}
	return &StaticFeed{ref: ref, price: d, now: now}, nil
}

func (f *StaticFeed) LatestPrice(context.Context) (Price, error) {
	return priceFromDecimal(f.price, f.now())
}

func (f *StaticFeed) Reference() string { return f.ref }

// httpAnswer is the JSON document served by an HTTP feed.
type httpAnswer struct {
	Price     json.Number `json:"price"`
	UpdatedAt int64       `json:"updated_at"`
}

// HTTPFeed reads a JSON price document. Concurrent reads share one request.
type HTTPFeed struct {
	url    string
	client *http.Client
	group  singleflight.Group
}

func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPFeed{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFeed) Reference() string { return f.url }

func (f *HTTPFeed) LatestPrice(ctx context.Context) (Price, error) {
	v, err, _ := f.group.Do(f.url, func() (interface{}, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return Price{}, err
	}
	return v.(Price), nil
}

func (f *HTTPFeed) fetch(ctx context.Context) (Price, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Price{}, fmt.Errorf("%w: feed answered %s", ErrPriceUnavailable, resp.Status)
	}
	var doc httpAnswer
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&doc); err != nil {
		return Price{}, fmt.Errorf("%w: decode feed: %v", ErrPriceUnavailable, err)
	}
	d, err := decimal.NewFromString(doc.Price.String())
	if err != nil {
		return Price{}, fmt.Errorf("%w: bad price %q", ErrPriceUnavailable, doc.Price)
	}
	return priceFromDecimal(d, time.Unix(doc.UpdatedAt, 0))
}
