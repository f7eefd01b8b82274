package geckoterminal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

const callTS = int64(1_700_000_000)

func fakeGecko(t *testing.T, ohlcvCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/tokens/TOKEN"):
			writeJSON(w, map[string]any{"data": map[string]any{"attributes": map[string]any{
				"name": "Token", "symbol": "TOK", "price_usd": "2", "fdv_usd": nil, "total_supply": "1000000",
			}}})
		case strings.HasSuffix(r.URL.Path, "/tokens/TOKEN/pools"):
			writeJSON(w, map[string]any{"data": []any{
				map[string]any{"attributes": map[string]any{"address": "small", "reserve_in_usd": "10", "token_price_usd": "2.5"}},
				map[string]any{"attributes": map[string]any{"address": "deep", "reserve_in_usd": "5000", "base_token_price_usd": "2.1"}},
			}})
		case strings.Contains(r.URL.Path, "/pools/deep/ohlcv/day"):
			if ohlcvCalls != nil {
				atomic.AddInt32(ohlcvCalls, 1)
			}
			assert.Equal(t, "usd", r.URL.Query().Get("currency"))
			before := r.URL.Query().Get("before_timestamp")
			var list [][]float64
			if r.URL.Query().Get("limit") == "30" {
				// price-at-call lookup
				list = [][]float64{
					{float64(callTS + day), 1, 1, 1, 1.5, 10},
					{float64(callTS - 3600), 1, 1, 1, 1.0, 10},
					{float64(callTS - day), 1, 1, 1, 0.5, 10},
				}
			} else if before == "1700864000" {
				// first ATH page only; later pages are empty
				list = [][]float64{
					{float64(callTS + 2*day), 1, 9, 1, 2, 10},
					{float64(callTS + day), 1, 4, 1, 2, 10},
					{float64(callTS - day), 1, 50, 1, 2, 10},
				}
			}
			writeJSON(w, map[string]any{"data": map[string]any{"attributes": map[string]any{"ohlcv_list": list}}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(url string) *Client {
	c := New(url, "", 5*time.Second, 0)
	c.now = func() time.Time { return time.Unix(callTS+10*day, 0) }
	return c
}

func TestGetTokenInfoParsesStringNumbers(t *testing.T) {
	srv := fakeGecko(t, nil)
	defer srv.Close()

	info, err := newTestClient(srv.URL).GetTokenInfo(context.Background(), "solana", "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "TOK", info.Symbol)
	assert.Equal(t, 2.0, info.PriceUSD)
	assert.Equal(t, 0.0, info.FDVUSD)
	assert.Equal(t, "1000000", info.TotalSupply)
}

func TestMainPoolAndBestPrice(t *testing.T) {
	srv := fakeGecko(t, nil)
	defer srv.Close()
	c := newTestClient(srv.URL)

	p, err := c.MainPool(context.Background(), "solana", "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "deep", p.Address)
	assert.Equal(t, 2.1, p.TokenPriceUSD)

	best, err := c.BestPoolPrice(context.Background(), "solana", "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, 2.5, best)
}

func TestPriceAtTimestampPicksClosestClose(t *testing.T) {
	srv := fakeGecko(t, nil)
	defer srv.Close()

	p, err := newTestClient(srv.URL).GetTokenPriceAtTimestamp(context.Background(), "solana", "TOKEN", callTS)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
}

func TestATHIgnoresCandlesBeforeCall(t *testing.T) {
	var calls int32
	srv := fakeGecko(t, &calls)
	defer srv.Close()

	ath, err := newTestClient(srv.URL).GetATHSinceTimestamp(context.Background(), "solana", "TOKEN", callTS)
	require.NoError(t, err)
	assert.Equal(t, 9.0, ath.Price)
	assert.Equal(t, callTS+2*day, ath.Timestamp)
	// the second page starts before the call time, so paging stops after one request
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetTokenDataWithMarketCaps(t *testing.T) {
	srv := fakeGecko(t, nil)
	defer srv.Close()

	d, err := newTestClient(srv.URL).GetTokenDataWithMarketCaps(context.Background(), "solana", "TOKEN", callTS)
	require.NoError(t, err)

	require.NotNil(t, d.CurrentPrice)
	assert.Equal(t, 2.0, *d.CurrentPrice)
	require.NotNil(t, d.CurrentFDV)
	assert.InDelta(t, 2_000_000, *d.CurrentFDV, 0.001)
	require.NotNil(t, d.FDVAtCall)
	assert.InDelta(t, 1_000_000, *d.FDVAtCall, 0.001)
	require.NotNil(t, d.ATHFDV)
	assert.InDelta(t, 9_000_000, *d.ATHFDV, 0.001)
	assert.Equal(t, d.CurrentFDV, d.CurrentMarketCap)
	assert.Equal(t, d.ATHFDV, d.ATHMarketCap)
}

func TestErrorsOnHTTPFailure(t *testing.T) {
	srv := fakeGecko(t, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetTokenInfo(context.Background(), "solana", "MISSING")
	assert.ErrorContains(t, err, "status 404")
}

func TestMarketCap(t *testing.T) {
	mc, ok := MarketCap(0.5, "1000000000000")
	assert.True(t, ok)
	assert.InDelta(t, 5e11, mc, 1)

	_, ok = MarketCap(0, "10")
	assert.False(t, ok)
	_, ok = MarketCap(1, "abc")
	assert.False(t, ok)
	_, ok = MarketCap(1, "-5")
	assert.False(t, ok)
}
