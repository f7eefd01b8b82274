// Package analysis scores calls, their tweets and discovery websites with the
// configured AI models and writes the results back to the database.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"krom-analysis/models"
	"krom-analysis/repository"
	"krom-analysis/services/ai"
	"krom-analysis/services/website"
	"krom-analysis/tokenutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNothingToAnalyze = errors.New("no unanalyzed calls found")
	ErrNoContract       = errors.New("no contract address found for this call")
	ErrNoTweets         = errors.New("no tweets available for this token")
	ErrNoWebsite        = errors.New("token has no website")
	ErrBatchParse       = errors.New("failed to parse batch analysis results")
	ErrTweetFetch       = errors.New("failed to fetch x data")
	ErrTweetAnalysis    = errors.New("failed to analyze tweets")
)

// TweetSource finds recent tweets mentioning a contract.
type TweetSource interface {
	Tweets(ctx context.Context, contract string) ([]string, error)
}

// PageFetcher downloads and extracts a website.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*website.Page, error)
}

type Options struct {
	DefaultModel string
	BatchModel   string
	XModel       string
	// XDelay is the pause between calls in sequential X runs.
	XDelay time.Duration
}

type Service struct {
	calls     *repository.Calls
	discovery *repository.Discovery
	ai        ai.Completer
	tweets    TweetSource
	pages     PageFetcher
	opts      Options

	now   func() time.Time
	newID func() string
	sleep func(context.Context, time.Duration) error
	log   *zap.Logger
}

func New(calls *repository.Calls, discovery *repository.Discovery, completer ai.Completer,
	tweets TweetSource, pages PageFetcher, opts Options) *Service {
	if opts.DefaultModel == "" {
		opts.DefaultModel = "claude-3-haiku-20240307"
	}
	if opts.BatchModel == "" {
		opts.BatchModel = "gemini-2.5-pro"
	}
	if opts.XModel == "" {
		opts.XModel = opts.DefaultModel
	}
	return &Service{
		calls:     calls,
		discovery: discovery,
		ai:        completer,
		tweets:    tweets,
		pages:     pages,
		opts:      opts,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		sleep:     sleepCtx,
		log:       zap.L().Named("analysis"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// Seconds renders a duration the way the API reports it, e.g. "3.2".
func Seconds(d time.Duration) string {
	return fmt.Sprintf("%.1f", d.Seconds())
}

func ptr[T any](v T) *T { return &v }

// callInput collects the prompt fields, preferring the raw payload over columns.
func callInput(c *models.Call) ai.CallInput {
	raw := tokenutil.ParseRaw(c.RawData)
	in := ai.CallInput{
		Ticker:    c.Ticker,
		Contract:  raw.Contract(),
		Network:   raw.Network(),
		Group:     raw.GroupName(),
		Message:   raw.Message(),
		Timestamp: c.CallTime().UTC().Format(time.RFC3339),
	}
	if in.Contract == "" {
		in.Contract = c.ContractAddress
	}
	if in.Network == "" {
		in.Network = c.Network
	}
	return in
}

// contractOf returns the stored contract, else the first address found in the raw payload.
func contractOf(c *models.Call) string {
	if c.ContractAddress != "" {
		return c.ContractAddress
	}
	raw := tokenutil.ParseRaw(c.RawData)
	if ca := raw.Contract(); ca != "" {
		return ca
	}
	return tokenutil.ExtractContracts(string(c.RawData)).First()
}

func networkOf(c *models.Call) string {
	if c.Network != "" {
		return c.Network
	}
	return tokenutil.ParseRaw(c.RawData).Network()
}
