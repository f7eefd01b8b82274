package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	// MaxBatch is the most addresses the tokens endpoint accepts per request.
	MaxBatch = 30
)

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")}
}

type Pair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	URL       string `json:"url"`
	PairAddr  string `json:"pairAddress"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string   `json:"priceUsd"`
	FDV       *float64 `json:"fdv"`
	MarketCap *float64 `json:"marketCap"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume *struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange *struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Info *struct {
		ImageURL    string            `json:"imageUrl"`
		Description string            `json:"description"`
		Websites    []json.RawMessage `json:"websites"`
		Socials     []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

type tokensResponse struct {
	Pairs []Pair `json:"pairs"`
}

// Pairs fetches every pair for up to MaxBatch token addresses.
func (c *Client) Pairs(ctx context.Context, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxBatch {
		return nil, fmt.Errorf("dexscreener: %d addresses exceeds batch limit %d", len(addresses), MaxBatch)
	}

	var r tokensResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&r).
		Get("/latest/dex/tokens/" + strings.Join(addresses, ","))
	if err != nil {
		return nil, fmt.Errorf("dexscreener tokens: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("dexscreener tokens: status %d", resp.StatusCode())
	}
	return r.Pairs, nil
}

// Prices maps lowercased base-token address to USD price. The first pair
// quoted for an address wins.
func (c *Client) Prices(ctx context.Context, addresses []string) (map[string]float64, error) {
	pairs, err := c.Pairs(ctx, addresses)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(addresses))
	for _, p := range pairs {
		addr := strings.ToLower(p.BaseToken.Address)
		if addr == "" || p.PriceUSD == "" {
			continue
		}
		if _, seen := out[addr]; seen {
			continue
		}
		price, err := strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil || price <= 0 {
			continue
		}
		out[addr] = price
	}
	return out, nil
}

type TokenInfo struct {
	Website        *string  `json:"website"`
	Twitter        *string  `json:"twitter"`
	Telegram       *string  `json:"telegram"`
	Discord        *string  `json:"discord"`
	ImageURL       *string  `json:"imageUrl"`
	Description    *string  `json:"description"`
	FDV            *float64 `json:"fdv,omitempty"`
	MarketCap      *float64 `json:"marketCap,omitempty"`
	Liquidity      *float64 `json:"liquidity,omitempty"`
	Volume24h      *float64 `json:"volume24h,omitempty"`
	PriceChange24h *float64 `json:"priceChange24h,omitempty"`
	DexscreenerURL string   `json:"dexscreenerUrl,omitempty"`
}

// TokenInfo returns socials and market data for a token, using the pair on
// network when there is one and the first pair otherwise. A token with no
// pairs yields an empty TokenInfo.
func (c *Client) TokenInfo(ctx context.Context, contract, network string) (*TokenInfo, error) {
	pairs, err := c.Pairs(ctx, []string{contract})
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return &TokenInfo{}, nil
	}

	pair := pairs[0]
	for _, p := range pairs {
		if strings.EqualFold(p.ChainID, network) {
			pair = p
			break
		}
	}

	info := &TokenInfo{
		FDV:            pair.FDV,
		MarketCap:      pair.MarketCap,
		DexscreenerURL: fmt.Sprintf("https://dexscreener.com/%s/%s", network, contract),
	}
	if pair.Liquidity != nil {
		info.Liquidity = &pair.Liquidity.USD
	}
	if pair.Volume != nil {
		info.Volume24h = &pair.Volume.H24
	}
	if pair.PriceChange != nil {
		info.PriceChange24h = &pair.PriceChange.H24
	}
	if pair.Info != nil {
		info.ImageURL = strPtr(pair.Info.ImageURL)
		info.Description = strPtr(pair.Info.Description)
		if len(pair.Info.Websites) > 0 {
			info.Website = strPtr(websiteURL(pair.Info.Websites[0]))
		}
		for _, s := range pair.Info.Socials {
			switch s.Type {
			case "twitter":
				info.Twitter = firstNonNil(info.Twitter, s.URL)
			case "telegram":
				info.Telegram = firstNonNil(info.Telegram, s.URL)
			case "discord":
				info.Discord = firstNonNil(info.Discord, s.URL)
			}
		}
	}
	return info, nil
}

// websiteURL accepts either a bare string or {"url": "..."}.
func websiteURL(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.URL
	}
	return ""
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonNil(cur *string, v string) *string {
	if cur != nil {
		return cur
	}
	return strPtr(v)
}
