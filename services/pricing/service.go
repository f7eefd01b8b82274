// Package pricing fetches historical and live token prices and keeps the
// price columns of crypto_calls up to date.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"krom-analysis/models"
	"krom-analysis/repository"
	"krom-analysis/services/geckoterminal"
	"krom-analysis/tokenutil"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNoPriceData = errors.New("no price data")

// HistoryOracle is the GeckoTerminal surface pricing depends on.
type HistoryOracle interface {
	GetTokenPriceAtTimestamp(ctx context.Context, network, address string, ts int64) (float64, error)
	GetATHSinceTimestamp(ctx context.Context, network, address string, since int64) (*geckoterminal.ATH, error)
	GetCurrentPrice(ctx context.Context, network, address string) (float64, error)
	GetTokenDataWithMarketCaps(ctx context.Context, network, address string, callTS int64) (*geckoterminal.TokenData, error)
	BestPoolPrice(ctx context.Context, network, address string) (float64, error)
}

// LiveQuoter returns current prices for many addresses in one request.
type LiveQuoter interface {
	Prices(ctx context.Context, addresses []string) (map[string]float64, error)
}

type Options struct {
	BatchSize    int
	RequestDelay time.Duration
	GeckoDelay   time.Duration
}

type Service struct {
	calls *repository.Calls
	gecko HistoryOracle
	dex   LiveQuoter
	opts  Options
	now   func() time.Time
	log   *zap.Logger
}

func New(calls *repository.Calls, gecko HistoryOracle, dex LiveQuoter, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 30
	}
	return &Service{
		calls: calls,
		gecko: gecko,
		dex:   dex,
		opts:  opts,
		now:   time.Now,
		log:   zap.L().Named("pricing"),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Quote is a point-in-time price report for one token.
type Quote struct {
	ContractAddress string   `json:"contractAddress"`
	Network         string   `json:"network"`
	PriceAtCall     *float64 `json:"priceAtCall"`
	CurrentPrice    *float64 `json:"currentPrice"`
	ATH             *float64 `json:"ath"`
	ATHTimestamp    *int64   `json:"athTimestamp"`
	ATHDate         *string  `json:"athDate"`
	ROI             *float64 `json:"roi"`
	ATHROI          *float64 `json:"athROI"`
	DrawdownFromATH *float64 `json:"drawdownFromATH"`
	CallDate        string   `json:"callDate"`
	FetchedAt       string   `json:"fetchedAt"`
}

// FetchTokenPrice looks up the call price, the ATH since the call and the
// current price concurrently. A lookup that fails leaves its field nil.
func (s *Service) FetchTokenPrice(ctx context.Context, contract, network string, callTS int64) (*Quote, error) {
	if network == "" {
		network = tokenutil.GuessNetwork(contract)
	}
	callTS = NormalizeTimestamp(callTS)
	apiNet := tokenutil.APINetwork(network)

	var (
		atCall, current float64
		ath             *geckoterminal.ATH
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.gecko.GetTokenPriceAtTimestamp(gctx, apiNet, contract, callTS)
		if err != nil {
			s.log.Debug("price at call unavailable", zap.String("contract", contract), zap.Error(err))
			return gctx.Err()
		}
		atCall = p
		return nil
	})
	g.Go(func() error {
		a, err := s.gecko.GetATHSinceTimestamp(gctx, apiNet, contract, callTS)
		if err != nil {
			s.log.Debug("ath unavailable", zap.String("contract", contract), zap.Error(err))
			return gctx.Err()
		}
		ath = a
		return nil
	})
	g.Go(func() error {
		p, err := s.gecko.GetCurrentPrice(gctx, apiNet, contract)
		if err != nil {
			s.log.Debug("current price unavailable", zap.String("contract", contract), zap.Error(err))
			return gctx.Err()
		}
		current = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	q := &Quote{
		ContractAddress: contract,
		Network:         network,
		PriceAtCall:     positive(atCall),
		CurrentPrice:    positive(current),
		CallDate:        isoDate(callTS),
		FetchedAt:       s.now().UTC().Format(time.RFC3339),
	}
	if ath != nil && ath.Price > 0 {
		q.ATH = &ath.Price
		ts := ath.Timestamp
		date := isoDate(ts)
		q.ATHTimestamp, q.ATHDate = &ts, &date
	}
	q.ROI = ROI(q.PriceAtCall, q.CurrentPrice)
	q.ATHROI = ROI(q.PriceAtCall, q.ATH)
	q.DrawdownFromATH = Drawdown(q.ATH, q.CurrentPrice)
	return q, nil
}

type BatchError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

type BatchResult struct {
	Message    string       `json:"message"`
	Processed  int          `json:"processed"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Errors     []BatchError `json:"errors"`
}

// BatchFetch fills in historical prices for up to count analyzed calls that
// have none yet, newest first, one call at a time.
func (s *Service) BatchFetch(ctx context.Context, count int) (*BatchResult, error) {
	calls, err := s.calls.PendingPrice(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("load pending calls: %w", err)
	}
	res := &BatchResult{Errors: []BatchError{}}
	if len(calls) == 0 {
		res.Message = "No calls found that need price data"
		return res, nil
	}

	for i := range calls {
		c := &calls[i]
		if err := s.fetchAndStore(ctx, c); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("price fetch failed", zap.String("krom_id", c.KromID), zap.String("ticker", c.Ticker), zap.Error(err))
			res.Failed++
			res.Errors = append(res.Errors, BatchError{Ticker: c.Ticker, Error: err.Error()})
		} else {
			res.Successful++
			if err := sleep(ctx, s.opts.RequestDelay); err != nil {
				return nil, err
			}
		}
		res.Processed++
	}
	res.Message = "Batch price fetch completed"
	s.log.Info("batch price fetch done",
		zap.Int("processed", res.Processed),
		zap.Int("successful", res.Successful),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Service) fetchAndStore(ctx context.Context, c *models.Call) error {
	raw := tokenutil.ParseRaw(c.RawData)
	contract := c.ContractAddress
	if contract == "" {
		contract = raw.Contract()
	}
	if contract == "" {
		return errors.New("no contract address")
	}
	network := raw.Network()
	if network == "" {
		network = c.Network
	}
	if network == "" {
		network = tokenutil.GuessNetwork(contract)
	}

	data, err := s.gecko.GetTokenDataWithMarketCaps(ctx, tokenutil.APINetwork(network), contract, c.CallTime().Unix())
	if err != nil {
		return err
	}

	now := s.now()
	updates := map[string]any{
		"price_at_call":      data.PriceAtCall,
		"current_price":      data.CurrentPrice,
		"ath_price":          nil,
		"ath_timestamp":      nil,
		"roi_percent":        ROI(data.PriceAtCall, data.CurrentPrice),
		"ath_roi_percent":    nil,
		"price_network":      network,
		"price_fetched_at":   now,
		"ath_last_checked":   now,
		"market_cap_at_call": data.MarketCapAtCall,
		"current_market_cap": data.CurrentMarketCap,
		"ath_market_cap":     data.ATHMarketCap,
		"fdv_at_call":        data.FDVAtCall,
		"current_fdv":        data.CurrentFDV,
		"ath_fdv":            data.ATHFDV,
		"token_supply":       nil,
	}
	if data.ATH != nil {
		athTime := time.Unix(data.ATH.Timestamp, 0).UTC()
		updates["ath_price"] = data.ATH.Price
		updates["ath_timestamp"] = athTime
		updates["ath_roi_percent"] = ROI(data.PriceAtCall, &data.ATH.Price)
	}
	if data.Info != nil && data.Info.TotalSupply != "" {
		updates["token_supply"] = data.Info.TotalSupply
	}
	if c.ContractAddress == "" {
		updates["contract_address"] = contract
	}
	return s.calls.UpdateByKromID(ctx, c.KromID, updates)
}

// TokenRef is a dashboard row whose live price may need refreshing.
type TokenRef struct {
	ID              uint       `json:"id"`
	ContractAddress string     `json:"contract_address"`
	Network         string     `json:"network"`
	CurrentPrice    *float64   `json:"current_price"`
	PriceUpdatedAt  *time.Time `json:"price_updated_at"`
	CreatedAt       *time.Time `json:"created_at"`
}

const (
	SourceDexScreener   = "DexScreener"
	SourceGeckoTerminal = "GeckoTerminal"
)

type PriceResult struct {
	Price       *float64   `json:"price"`
	Cached      bool       `json:"cached"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Source      string     `json:"source,omitempty"`
}

type RefreshSummary struct {
	Requested int `json:"requested"`
	Cached    int `json:"cached"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

type RefreshResult struct {
	Prices  map[string]PriceResult `json:"prices"`
	Summary RefreshSummary         `json:"summary"`
}

// Refresh returns a live price for each token. Prices still inside their
// cache window are returned as-is; stale ones are quoted by DexScreener in
// batches, then GeckoTerminal pool by pool for whatever is left. Results are
// keyed by lowercased contract address.
func (s *Service) Refresh(ctx context.Context, tokens []TokenRef) (*RefreshResult, error) {
	now := s.now()
	res := &RefreshResult{Prices: map[string]PriceResult{}}
	var stale []TokenRef

	for _, t := range tokens {
		if t.ContractAddress == "" || t.Network == "" {
			continue
		}
		var created time.Time
		if t.CreatedAt != nil {
			created = *t.CreatedAt
		}
		if models.PriceStale(t.PriceUpdatedAt, created, now) {
			stale = append(stale, t)
			continue
		}
		res.Prices[strings.ToLower(t.ContractAddress)] = PriceResult{
			Price:       t.CurrentPrice,
			Cached:      true,
			LastUpdated: t.PriceUpdatedAt,
		}
	}

	store := func(t TokenRef, price float64, source string) {
		err := s.calls.UpdateByID(ctx, t.ID, map[string]any{
			"current_price":    price,
			"price_updated_at": now,
		})
		if err != nil {
			s.log.Warn("store refreshed price", zap.Uint("id", t.ID), zap.Error(err))
			return
		}
		p, at := price, now
		res.Prices[strings.ToLower(t.ContractAddress)] = PriceResult{Price: &p, LastUpdated: &at, Source: source}
	}

	for start := 0; start < len(stale); start += s.opts.BatchSize {
		batch := stale[start:min(start+s.opts.BatchSize, len(stale))]
		addrs := make([]string, len(batch))
		for i, t := range batch {
			addrs[i] = t.ContractAddress
		}
		prices, err := s.dex.Prices(ctx, addrs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("dexscreener batch failed", zap.Int("size", len(batch)), zap.Error(err))
			continue
		}
		for _, t := range batch {
			if p, ok := prices[strings.ToLower(t.ContractAddress)]; ok {
				store(t, p, SourceDexScreener)
			}
		}
	}

	for _, t := range stale {
		if _, ok := res.Prices[strings.ToLower(t.ContractAddress)]; ok {
			continue
		}
		p, err := s.gecko.BestPoolPrice(ctx, tokenutil.APINetwork(t.Network), t.ContractAddress)
		if err == nil {
			store(t, p, SourceGeckoTerminal)
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := sleep(ctx, s.opts.GeckoDelay); err != nil {
			return nil, err
		}
	}

	res.Summary.Requested = len(tokens)
	for _, p := range res.Prices {
		if p.Cached {
			res.Summary.Cached++
		} else {
			res.Summary.Updated++
		}
	}
	res.Summary.Failed = len(tokens) - len(res.Prices)
	return res, nil
}

// PriceData is a client-computed price report to persist for one call.
type PriceData struct {
	KromID       string     `json:"kromId" binding:"required"`
	PriceAtCall  *float64   `json:"priceAtCall"`
	CurrentPrice *float64   `json:"currentPrice"`
	ATH          *float64   `json:"ath"`
	ATHTimestamp *time.Time `json:"athTimestamp"`
	ROI          *float64   `json:"roi"`
	ATHROI       *float64   `json:"athROI"`
	Network      string     `json:"network"`
}

func (s *Service) Save(ctx context.Context, d PriceData) error {
	return s.calls.UpdateByKromID(ctx, d.KromID, map[string]any{
		"price_at_call":    d.PriceAtCall,
		"current_price":    d.CurrentPrice,
		"ath_price":        d.ATH,
		"ath_timestamp":    d.ATHTimestamp,
		"roi_percent":      d.ROI,
		"ath_roi_percent":  d.ATHROI,
		"price_network":    d.Network,
		"price_fetched_at": s.now(),
	})
}

func (s *Service) Clear(ctx context.Context, kromIDs []string) (int64, error) {
	return s.calls.ClearPrices(ctx, kromIDs)
}

// StoredPrices is the price block stored for a call.
type StoredPrices struct {
	PriceAtCall      *float64   `json:"priceAtCall"`
	CurrentPrice     *float64   `json:"currentPrice"`
	ATH              *float64   `json:"ath"`
	ATHDate          *time.Time `json:"athDate"`
	ROI              *float64   `json:"roi"`
	ATHROI           *float64   `json:"athROI"`
	MarketCapAtCall  *float64   `json:"marketCapAtCall"`
	CurrentMarketCap *float64   `json:"currentMarketCap"`
	ATHMarketCap     *float64   `json:"athMarketCap"`
	FDVAtCall        *float64   `json:"fdvAtCall"`
	CurrentFDV       *float64   `json:"currentFdv"`
	ATHFDV           *float64   `json:"athFdv"`
	Network          string     `json:"network"`
	LastFetched      *time.Time `json:"lastFetched"`
}

// Lookup returns the stored prices of the latest call for a contract, or
// for a ticker when no contract is given. ErrNoPriceData when none match.
func (s *Service) Lookup(ctx context.Context, contract, ticker string) (*StoredPrices, error) {
	calls, err := s.calls.PricesFor(ctx, contract, ticker)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, ErrNoPriceData
	}
	c := calls[0]
	return &StoredPrices{
		PriceAtCall:      c.PriceAtCall,
		CurrentPrice:     c.CurrentPrice,
		ATH:              c.ATHPrice,
		ATHDate:          c.ATHTimestamp,
		ROI:              c.ROIPercent,
		ATHROI:           c.ATHROIPercent,
		MarketCapAtCall:  c.MarketCapAtCall,
		CurrentMarketCap: c.CurrentMarketCap,
		ATHMarketCap:     c.ATHMarketCap,
		FDVAtCall:        c.FDVAtCall,
		CurrentFDV:       c.CurrentFDV,
		ATHFDV:           c.ATHFDV,
		Network:          c.PriceNetwork,
		LastFetched:      c.PriceFetchedAt,
	}, nil
}
