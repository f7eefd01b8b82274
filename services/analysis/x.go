package analysis

import (
	"context"
	"fmt"
	"time"

	"krom-analysis/models"
	"krom-analysis/services/ai"

	"go.uber.org/zap"
)

const (
	maxTweetsAnalyzed = 15
	maxTweetsStored   = 10
)

type XResult struct {
	KromID          string    `json:"krom_id"`
	Ticker          string    `json:"ticker"`
	ContractAddress string    `json:"contract_address"`
	TweetsFound     int       `json:"tweets_found"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
	Score           float64   `json:"score"`
	Tier            string    `json:"tier"`
	PositiveSignals []string  `json:"positive_signals"`
	RedFlags        []string  `json:"red_flags"`
	Assessment      string    `json:"assessment"`
	RawAnalysis     string    `json:"raw_analysis"`
}

// AnalyzeX searches tweets for the call's contract and scores them. Unless
// force is set, a call that already has an X analysis is returned as stored.
func (s *Service) AnalyzeX(ctx context.Context, kromID string, force bool) (*XResult, error) {
	c, err := s.calls.GetByKromID(ctx, kromID)
	if err != nil {
		return nil, err
	}
	contract := contractOf(c)
	if contract == "" {
		return nil, ErrNoContract
	}
	if !force && c.XAnalyzedAt != nil && c.XAnalysisScore != nil {
		return storedX(c, contract), nil
	}

	if s.tweets == nil {
		return nil, fmt.Errorf("%w: no tweet source configured", ErrTweetFetch)
	}
	tweets, err := s.tweets.Tweets(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTweetFetch, err)
	}
	if len(tweets) > maxTweetsAnalyzed {
		tweets = tweets[:maxTweetsAnalyzed]
	}

	start := s.now()
	var res ai.XAnalysis
	if len(tweets) == 0 {
		res = ai.NoTweetsAnalysis()
	} else {
		text, err := s.ai.Complete(ctx, ai.Request{
			Model:     s.opts.XModel,
			System:    ai.XSystem,
			Prompt:    ai.XPrompt(c.Ticker, contract, tweets),
			MaxTokens: 600,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTweetAnalysis, err)
		}
		res = ai.ParseX(text, len(tweets))
	}

	now := s.now()
	tier := models.TierForScore(res.Score)
	updates := map[string]any{
		"x_analysis_score":       res.Score,
		"x_analysis_tier":        tier,
		"x_analysis_summary":     res.Summary(),
		"x_analysis_assessment":  res.Assessment,
		"x_analysis_model":       s.opts.XModel,
		"x_analysis_prompt_used": ai.XPromptID,
		"x_analysis_duration_ms": now.Sub(start).Milliseconds(),
		"x_raw_tweets":           models.EncodeTweets(tweets, maxTweetsStored),
		"x_analyzed_at":          now,
	}
	if res.TokenType != "" {
		updates["x_analysis_token_type"] = res.TokenType
	}
	if c.ContractAddress == "" {
		updates["contract_address"] = contract
	}
	if err := s.calls.UpdateByID(ctx, c.ID, updates); err != nil {
		return nil, fmt.Errorf("store x analysis: %w", err)
	}
	s.log.Info("x analyzed", zap.String("krom_id", kromID), zap.Int("tweets", len(tweets)), zap.String("tier", tier))

	return &XResult{
		KromID:          kromID,
		Ticker:          c.Ticker,
		ContractAddress: contract,
		TweetsFound:     len(tweets),
		AnalyzedAt:      now,
		Score:           res.Score,
		Tier:            tier,
		PositiveSignals: res.PositiveSignals,
		RedFlags:        res.RedFlags,
		Assessment:      res.Assessment,
		RawAnalysis:     res.Raw,
	}, nil
}

func storedX(c *models.Call, contract string) *XResult {
	out := &XResult{
		KromID:          c.KromID,
		Ticker:          c.Ticker,
		ContractAddress: contract,
		TweetsFound:     len(c.Tweets()),
		AnalyzedAt:      *c.XAnalyzedAt,
		Score:           *c.XAnalysisScore,
		Tier:            c.XAnalysisTier,
		Assessment:      c.XAnalysisAssessment,
		RawAnalysis:     c.XAnalysisSummary,
	}
	return out
}

type XPendingRun struct {
	Processed  int         `json:"processed"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Results    []*XResult  `json:"results"`
	Errors     []CallError `json:"errors,omitempty"`
}

type CallError struct {
	KromID string `json:"krom_id"`
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// AnalyzeXPending runs AnalyzeX over call-analyzed calls that have a contract
// and no X analysis yet, pausing between calls.
func (s *Service) AnalyzeXPending(ctx context.Context, limit int) (*XPendingRun, error) {
	if limit <= 0 {
		limit = 5
	}
	calls, err := s.calls.UnanalyzedX(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load calls pending x analysis: %w", err)
	}
	run := &XPendingRun{Results: []*XResult{}}
	for i, c := range calls {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.XDelay); err != nil {
				return run, err
			}
		}
		run.Processed++
		res, err := s.AnalyzeX(ctx, c.KromID, true)
		if err != nil {
			run.Failed++
			run.Errors = append(run.Errors, CallError{KromID: c.KromID, Ticker: c.Ticker, Error: err.Error()})
			s.log.Warn("x analysis failed", zap.String("krom_id", c.KromID), zap.Error(err))
			continue
		}
		run.Successful++
		run.Results = append(run.Results, res)
	}
	return run, nil
}

type XRescoreResult struct {
	KromID             string  `json:"krom_id"`
	XScore             float64 `json:"x_score"`
	XTier              string  `json:"x_tier"`
	XLegitimacyFactor  string  `json:"x_legitimacy_factor"`
	XBestTweet         string  `json:"x_best_tweet"`
	XAnalysisReasoning string  `json:"x_analysis_reasoning"`
	TweetCount         int     `json:"tweet_count"`
	DurationMS         int64   `json:"duration_ms"`
}

const noTweetsReasoning = "No valid tweets found for this token - indicates zero social media presence or community engagement."

// ReanalyzeX rescores the tweets stored with a call without scraping again.
func (s *Service) ReanalyzeX(ctx context.Context, kromID, model string) (*XRescoreResult, error) {
	if model == "" {
		model = s.opts.XModel
	}
	c, err := s.calls.GetByKromID(ctx, kromID)
	if err != nil {
		return nil, err
	}
	if len(c.XRawTweets) == 0 || string(c.XRawTweets) == "null" {
		return nil, ErrNoTweets
	}

	tweets := c.Tweets()
	start := s.now()
	res := ai.XRescore{Score: 1, LegitimacyFactor: "Low", Reasoning: noTweetsReasoning}
	if len(tweets) > 0 {
		text, err := s.ai.Complete(ctx, ai.Request{
			Model:     model,
			System:    ai.XReanalysisSystem,
			Prompt:    ai.XRescorePrompt(c.Ticker, capturedAt(c), tweets),
			MaxTokens: 800,
		})
		if err != nil {
			return nil, fmt.Errorf("rescore tweets for %s: %w", kromID, err)
		}
		res = ai.ParseXRescore(text)
	}

	now := s.now()
	dur := now.Sub(start).Milliseconds()
	tier := models.TierForScore(res.Score)
	err = s.calls.UpdateByID(ctx, c.ID, map[string]any{
		"x_analysis_score":       res.Score,
		"x_analysis_tier":        tier,
		"x_legitimacy_factor":    res.LegitimacyFactor,
		"x_analysis_model":       model,
		"x_best_tweet":           res.BestTweet,
		"x_analysis_reasoning":   res.Reasoning,
		"x_analysis_duration_ms": dur,
		"x_analysis_prompt_used": ai.XReanalysisPromptID,
		"x_reanalyzed_at":        now,
	})
	if err != nil {
		return nil, fmt.Errorf("store x rescore: %w", err)
	}

	return &XRescoreResult{
		KromID:             kromID,
		XScore:             res.Score,
		XTier:              tier,
		XLegitimacyFactor:  res.LegitimacyFactor,
		XBestTweet:         res.BestTweet,
		XAnalysisReasoning: res.Reasoning,
		TweetCount:         len(tweets),
		DurationMS:         dur,
	}, nil
}

type XBatchItem struct {
	KromID           string  `json:"krom_id"`
	Ticker           string  `json:"ticker"`
	Score            float64 `json:"score"`
	Tier             string  `json:"tier"`
	LegitimacyFactor string  `json:"legitimacy_factor"`
	TweetCount       int     `json:"tweet_count"`
	DurationMS       int64   `json:"duration_ms"`
}

type XBatchRun struct {
	BatchID         string       `json:"batch_id"`
	Analyzed        int          `json:"analyzed"`
	Results         []XBatchItem `json:"results"`
	Errors          []CallError  `json:"errors,omitempty"`
	TotalDurationMS int64        `json:"total_duration_ms"`
	Model           string       `json:"model_used"`
}

// XBatch rescores stored tweets for calls that have tweets but no X score,
// tagging every row with one batch id. Per-call failures are collected.
func (s *Service) XBatch(ctx context.Context, limit int, model string) (*XBatchRun, error) {
	if limit <= 0 {
		limit = 10
	}
	if model == "" {
		model = s.opts.XModel
	}
	calls, err := s.calls.UnscoredTweets(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load calls with tweets: %w", err)
	}

	run := &XBatchRun{Model: model, Results: []XBatchItem{}}
	if len(calls) == 0 {
		return run, nil
	}
	run.BatchID = s.newID()
	batchStart := s.now()
	batchTS := batchStart.UTC()

	for i := range calls {
		c := &calls[i]
		item, err := s.rescoreInBatch(ctx, c, model, run.BatchID, batchTS)
		if err != nil {
			run.Errors = append(run.Errors, CallError{KromID: c.KromID, Ticker: c.Ticker, Error: err.Error()})
			s.log.Warn("x batch rescore failed", zap.String("krom_id", c.KromID), zap.Error(err))
			continue
		}
		run.Results = append(run.Results, *item)
	}
	run.Analyzed = len(run.Results)
	run.TotalDurationMS = s.now().Sub(batchStart).Milliseconds()
	return run, nil
}

func (s *Service) rescoreInBatch(ctx context.Context, c *models.Call, model, batchID string, batchTS time.Time) (*XBatchItem, error) {
	tweets := c.Tweets()
	start := s.now()
	res := ai.XRescore{Score: 1, TokenType: "meme", LegitimacyFactor: "Low", Reasoning: noTweetsReasoning}
	if len(tweets) > 0 {
		text, err := s.ai.Complete(ctx, ai.Request{
			Model:     model,
			System:    ai.XBatchSystem,
			Prompt:    ai.XRescorePrompt(c.Ticker, capturedAt(c), tweets),
			MaxTokens: 800,
		})
		if err != nil {
			return nil, err
		}
		res = ai.ParseXRescore(text)
	}

	dur := s.now().Sub(start).Milliseconds()
	tier := models.TierForScore(res.Score)
	err := s.calls.UpdateByID(ctx, c.ID, map[string]any{
		"x_analysis_score":           res.Score,
		"x_analysis_tier":            tier,
		"x_analysis_token_type":      res.TokenType,
		"x_legitimacy_factor":        res.LegitimacyFactor,
		"x_analysis_model":           model,
		"x_best_tweet":               res.BestTweet,
		"x_analysis_reasoning":       res.Reasoning,
		"x_analysis_duration_ms":     dur,
		"x_analysis_prompt_used":     ai.XBatchPromptID,
		"x_analysis_batch_id":        batchID,
		"x_analysis_batch_timestamp": batchTS,
	})
	if err != nil {
		return nil, err
	}
	return &XBatchItem{
		KromID:           c.KromID,
		Ticker:           c.Ticker,
		Score:            res.Score,
		Tier:             tier,
		LegitimacyFactor: res.LegitimacyFactor,
		TweetCount:       len(tweets),
		DurationMS:       dur,
	}, nil
}

func capturedAt(c *models.Call) string {
	if c.XAnalyzedAt == nil {
		return ""
	}
	return c.XAnalyzedAt.UTC().Format(time.RFC3339)
}
