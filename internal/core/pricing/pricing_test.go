package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/types"
)

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) LatestPrice(ctx context.Context) (Price, error) {
	args := m.Called(ctx)
	return args.Get(0).(Price), args.Error(1)
}

func (m *mockFeed) Reference() string {
	return m.Called().String(0)
}

var now = time.Unix(1_700_000_000, 0)

func clock() time.Time { return now }

func TestStableToUSD(t *testing.T) {
	tests := []struct {
		name     string
		amount   *types.Amount
		decimals uint8
		want     types.USD
	}{
		{"usdt", types.Units(100, 6), 6, types.MustParseUSD("100")},
		{"dai", types.Units(15, 17), 18, types.MustParseUSD("1.5")},
		{"dust truncates", uint256.NewInt(999_999_999_999), 18, 0},
		{"two decimals", uint256.NewInt(1234), 2, types.MustParseUSD("12.34")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StableToUSD(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUSDRange(t *testing.T) {
	// 2^63 micro-dollars does not fit the store
	_, err := StableToUSD(new(uint256.Int).Lsh(uint256.NewInt(1), 63), 6)
	assert.Error(t, err)

	got, err := StableToUSD(uint256.NewInt(uint64(types.MaxUSD)), 6)
	require.NoError(t, err)
	assert.Equal(t, types.MaxUSD, got)
}

func TestNativeToUSD(t *testing.T) {
	price := Price{Answer: types.Units(3000, FeedDecimals), Decimals: FeedDecimals, UpdatedAt: now}

	got, err := NativeToUSD(types.Units(1, 18), 18, price)
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("3000"), got)

	got, err = NativeToUSD(types.Units(5, 16), 18, price)
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("150"), got)

	_, err = NativeToUSD(types.Units(1, 18), 18, Price{Answer: new(uint256.Int)})
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestStaticFeed(t *testing.T) {
	f, err := NewStaticFeed("static:2500.5", clock)
	require.NoError(t, err)
	p, err := f.LatestPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(250_050_000_000), p.Answer.Uint64())
	assert.Equal(t, now, p.UpdatedAt)

	_, err = NewStaticFeed("static:abc", clock)
	assert.ErrorIs(t, err, ErrInvalidReference)

	zero, err := NewStaticFeed("static:0", clock)
	require.NoError(t, err)
	_, err = zero.LatestPrice(context.Background())
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestHTTPFeed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, `{"price":"3000.25","updated_at":%d}`, now.Unix()-10)
	}))
	defer srv.Close()

	r, err := NewResolver(ResolverConfig{Timeout: time.Second, MaxAge: time.Minute}, clock)
	require.NoError(t, err)

	p, err := r.Latest(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, uint64(300_025_000_000), p.Answer.Uint64())
	assert.Equal(t, int32(1), hits.Load())

	feed, err := r.Resolve(srv.URL)
	require.NoError(t, err)
	again, err := r.Resolve(srv.URL)
	require.NoError(t, err)
	assert.Same(t, feed, again)
}

func TestHTTPFeedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		case "/garbage":
			fmt.Fprint(w, `not json`)
		case "/negative":
			fmt.Fprintf(w, `{"price":"-1","updated_at":%d}`, now.Unix())
		case "/stale":
			fmt.Fprintf(w, `{"price":"3000","updated_at":%d}`, now.Add(-2*time.Hour).Unix())
		}
	}))
	defer srv.Close()

	r, err := NewResolver(ResolverConfig{Timeout: time.Second, MaxAge: time.Hour}, clock)
	require.NoError(t, err)

	for _, path := range []string{"/down", "/garbage", "/negative", "/stale"} {
		t.Run(path, func(t *testing.T) {
			_, err := r.Latest(context.Background(), srv.URL+path)
			assert.ErrorIs(t, err, ErrPriceUnavailable)
		})
	}
}

func TestResolverRejectsUnknownScheme(t *testing.T) {
	r, err := NewResolver(ResolverConfig{}, clock)
	require.NoError(t, err)
	_, err = r.Resolve("ftp://feed")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestToUSDWithRegisteredFeed(t *testing.T) {
	r, err := NewResolver(ResolverConfig{MaxAge: time.Minute}, clock)
	require.NoError(t, err)

	feed := new(mockFeed)
	feed.On("Reference").Return("mock:eth")
	feed.On("LatestPrice", mock.Anything).Return(Price{
		Answer:    types.Units(2000, FeedDecimals),
		Decimals:  FeedDecimals,
		UpdatedAt: now.Add(-time.Second),
	}, nil).Once()
	r.Register(feed)

	usd, err := r.ToUSD(context.Background(), "mock:eth", types.NativeAsset, types.Units(2, 18))
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("4000"), usd)
	feed.AssertExpectations(t)

	usdt := types.Asset{Symbol: "USDT", Address: types.MustParseAddress("0x00000000000000000000000000000000000000d6"), Decimals: 6, Kind: types.AssetStable}
	usd, err = r.ToUSD(context.Background(), "unused", usdt, types.Units(100, 6))
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("100"), usd)
}

func TestToUSDStaleFeed(t *testing.T) {
	r, err := NewResolver(ResolverConfig{MaxAge: time.Minute}, clock)
	require.NoError(t, err)

	feed := new(mockFeed)
	feed.On("Reference").Return("mock:stale")
	feed.On("LatestPrice", mock.Anything).Return(Price{
		Answer:    types.Units(2000, FeedDecimals),
		Decimals:  FeedDecimals,
		UpdatedAt: now.Add(-time.Hour),
	}, nil)
	r.Register(feed)

	_, err = r.ToUSD(context.Background(), "mock:stale", types.NativeAsset, types.Units(1, 18))
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}
