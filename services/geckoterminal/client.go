// Package geckoterminal is a small client for the GeckoTerminal public API:
// token info, pools and OHLCV candles, plus the historical-price helpers
// built on top of them.
package geckoterminal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api.geckoterminal.com/api/v2"

var ErrNoData = errors.New("geckoterminal: no data")

const day = int64(86400)

type Client struct {
	http  *resty.Client
	delay time.Duration
	now   func() time.Time
}

// New returns a client. delay is slept between chained requests to stay
// under the public rate limit.
func New(baseURL, apiKey string, timeout, delay time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	h := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		h.SetHeader("x-cg-pro-api-key", apiKey)
	}
	return &Client{http: h, delay: delay, now: time.Now}
}

type TokenInfo struct {
	Address      string  `json:"address"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price_usd"`
	FDVUSD       float64 `json:"fdv_usd"`
	MarketCapUSD float64 `json:"market_cap_usd"`
	TotalSupply  string  `json:"total_supply,omitempty"`
}

type Pool struct {
	Address       string  `json:"address"`
	Name          string  `json:"name"`
	ReserveUSD    float64 `json:"reserve_in_usd"`
	TokenPriceUSD float64 `json:"token_price_usd"`
}

type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type ATH struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type tokenResponse struct {
	Data *struct {
		Attributes struct {
			Name         string  `json:"name"`
			Symbol       string  `json:"symbol"`
			PriceUSD     *string `json:"price_usd"`
			FDVUSD       *string `json:"fdv_usd"`
			MarketCapUSD *string `json:"market_cap_usd"`
			TotalSupply  *string `json:"total_supply"`
		} `json:"attributes"`
	} `json:"data"`
}

type poolsResponse struct {
	Data []struct {
		Attributes struct {
			Address           string  `json:"address"`
			Name              string  `json:"name"`
			ReserveInUSD      *string `json:"reserve_in_usd"`
			TokenPriceUSD     *string `json:"token_price_usd"`
			BaseTokenPriceUSD *string `json:"base_token_price_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

func num(s *string) float64 {
	if s == nil {
		return 0
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0
	}
	return f
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("geckoterminal %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("geckoterminal %s: status %d", path, resp.StatusCode())
	}
	return nil
}

func (c *Client) sleep(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) GetTokenInfo(ctx context.Context, network, address string) (*TokenInfo, error) {
	var r tokenResponse
	if err := c.get(ctx, fmt.Sprintf("/networks/%s/tokens/%s", network, address), nil, &r); err != nil {
		return nil, err
	}
	if r.Data == nil {
		return nil, ErrNoData
	}
	a := r.Data.Attributes
	info := &TokenInfo{
		Address:      address,
		Name:         a.Name,
		Symbol:       a.Symbol,
		PriceUSD:     num(a.PriceUSD),
		FDVUSD:       num(a.FDVUSD),
		MarketCapUSD: num(a.MarketCapUSD),
	}
	if a.TotalSupply != nil {
		info.TotalSupply = *a.TotalSupply
	}
	return info, nil
}

func (c *Client) GetTokenPools(ctx context.Context, network, address string) ([]Pool, error) {
	var r poolsResponse
	if err := c.get(ctx, fmt.Sprintf("/networks/%s/tokens/%s/pools", network, address), nil, &r); err != nil {
		return nil, err
	}
	pools := make([]Pool, 0, len(r.Data))
	for _, d := range r.Data {
		a := d.Attributes
		price := num(a.TokenPriceUSD)
		if price == 0 {
			price = num(a.BaseTokenPriceUSD)
		}
		pools = append(pools, Pool{
			Address:       a.Address,
			Name:          a.Name,
			ReserveUSD:    num(a.ReserveInUSD),
			TokenPriceUSD: price,
		})
	}
	return pools, nil
}

// GetHistoricalOHLCV returns candles newest first. before is a unix timestamp;
// zero means "now".
func (c *Client) GetHistoricalOHLCV(ctx context.Context, network, pool, timeframe string, aggregate int, before int64, limit int) ([]Candle, error) {
	if timeframe == "" {
		timeframe = "day"
	}
	params := map[string]string{
		"aggregate": strconv.Itoa(aggregate),
		"limit":     strconv.Itoa(limit),
		"currency":  "usd",
	}
	if before > 0 {
		params["before_timestamp"] = strconv.FormatInt(before, 10)
	}

	var r ohlcvResponse
	if err := c.get(ctx, fmt.Sprintf("/networks/%s/pools/%s/ohlcv/%s", network, pool, timeframe), params, &r); err != nil {
		return nil, err
	}
	candles := make([]Candle, 0, len(r.Data.Attributes.OHLCVList))
	for _, row := range r.Data.Attributes.OHLCVList {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, Candle{
			Timestamp: int64(row[0]),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
			Volume:    row[5],
		})
	}
	return candles, nil
}

// MainPool returns the pool with the deepest liquidity.
func (c *Client) MainPool(ctx context.Context, network, address string) (Pool, error) {
	pools, err := c.GetTokenPools(ctx, network, address)
	if err != nil {
		return Pool{}, err
	}
	sort.SliceStable(pools, func(i, j int) bool { return pools[i].ReserveUSD > pools[j].ReserveUSD })
	if len(pools) == 0 || pools[0].Address == "" {
		return Pool{}, ErrNoData
	}
	return pools[0], nil
}

// BestPoolPrice is the highest token price quoted across all pools.
func (c *Client) BestPoolPrice(ctx context.Context, network, address string) (float64, error) {
	pools, err := c.GetTokenPools(ctx, network, address)
	if err != nil {
		return 0, err
	}
	best := 0.0
	for _, p := range pools {
		best = math.Max(best, p.TokenPriceUSD)
	}
	if best <= 0 {
		return 0, ErrNoData
	}
	return best, nil
}

// GetTokenPriceAtTimestamp returns the daily close nearest ts (unix seconds)
// on the token's most liquid pool.
func (c *Client) GetTokenPriceAtTimestamp(ctx context.Context, network, address string, ts int64) (float64, error) {
	pool, err := c.MainPool(ctx, network, address)
	if err != nil {
		return 0, err
	}
	if err := c.sleep(ctx); err != nil {
		return 0, err
	}
	candles, err := c.GetHistoricalOHLCV(ctx, network, pool.Address, "day", 1, ts+day, 30)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, ErrNoData
	}

	closest := candles[0]
	for _, cd := range candles[1:] {
		if absInt(cd.Timestamp-ts) < absInt(closest.Timestamp-ts) {
			closest = cd
		}
	}
	return closest.Close, nil
}

const maxATHPages = 20

// GetATHSinceTimestamp pages daily candles backwards from now until since
// and returns the highest high.
func (c *Client) GetATHSinceTimestamp(ctx context.Context, network, address string, since int64) (*ATH, error) {
	pool, err := c.MainPool(ctx, network, address)
	if err != nil {
		return nil, err
	}

	var all []Candle
	before := c.now().Unix()
	for page := 0; page < maxATHPages && before > since; page++ {
		if err := c.sleep(ctx); err != nil {
			return nil, err
		}
		batch, err := c.GetHistoricalOHLCV(ctx, network, pool.Address, "day", 1, before, 1000)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		oldest := batch[0].Timestamp
		for _, cd := range batch {
			if cd.Timestamp < oldest {
				oldest = cd.Timestamp
			}
		}
		before = oldest - day
	}

	var ath *ATH
	for _, cd := range all {
		if cd.Timestamp < since {
			continue
		}
		if ath == nil || cd.High > ath.Price {
			ath = &ATH{Price: cd.High, Timestamp: cd.Timestamp}
		}
	}
	if ath == nil {
		return nil, ErrNoData
	}
	return ath, nil
}

func (c *Client) GetCurrentPrice(ctx context.Context, network, address string) (float64, error) {
	info, err := c.GetTokenInfo(ctx, network, address)
	if err != nil {
		return 0, err
	}
	if info.PriceUSD <= 0 {
		return 0, ErrNoData
	}
	return info.PriceUSD, nil
}

// MarketCap multiplies a price by a supply given as a decimal string.
// It returns false when either side is unusable.
func MarketCap(price float64, supply string) (float64, bool) {
	if price <= 0 || supply == "" {
		return 0, false
	}
	s, err := decimal.NewFromString(strings.TrimSpace(supply))
	if err != nil || !s.IsPositive() {
		return 0, false
	}
	mc, _ := decimal.NewFromFloat(price).Mul(s).Float64()
	return mc, true
}

// TokenData is a token's price history with market caps derived from FDV.
type TokenData struct {
	Info             *TokenInfo
	PriceAtCall      *float64
	CurrentPrice     *float64
	ATH              *ATH
	MarketCapAtCall  *float64
	CurrentMarketCap *float64
	ATHMarketCap     *float64
	FDVAtCall        *float64
	CurrentFDV       *float64
	ATHFDV           *float64
}

// GetTokenDataWithMarketCaps combines token info, price at call and ATH. FDVs
// at call and at ATH are scaled from the current FDV by price ratio; market
// caps mirror the FDVs.
func (c *Client) GetTokenDataWithMarketCaps(ctx context.Context, network, address string, callTS int64) (*TokenData, error) {
	info, err := c.GetTokenInfo(ctx, network, address)
	if err != nil {
		return nil, err
	}
	out := &TokenData{Info: info}

	if p, err := c.GetTokenPriceAtTimestamp(ctx, network, address, callTS); err == nil {
		out.PriceAtCall = &p
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if ath, err := c.GetATHSinceTimestamp(ctx, network, address, callTS); err == nil {
		out.ATH = ath
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	current := info.PriceUSD
	if current > 0 {
		out.CurrentPrice = &current
	}

	fdv := info.FDVUSD
	if fdv <= 0 && current > 0 {
		if v, ok := MarketCap(current, info.TotalSupply); ok {
			fdv = v
		}
	}
	if fdv > 0 {
		out.CurrentFDV = &fdv
		if current > 0 {
			if out.PriceAtCall != nil {
				v := *out.PriceAtCall / current * fdv
				out.FDVAtCall = &v
			}
			if out.ATH != nil && out.ATH.Price > 0 {
				v := out.ATH.Price / current * fdv
				out.ATHFDV = &v
			}
		}
	}
	out.CurrentMarketCap = out.CurrentFDV
	out.MarketCapAtCall = out.FDVAtCall
	out.ATHMarketCap = out.ATHFDV
	return out, nil
}

func absInt(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
