package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"krom-analysis/models"
	"krom-analysis/services/ai"

	"go.uber.org/zap"
)

type CallResult struct {
	Token            string  `json:"token"`
	Contract         *string `json:"contract"`
	Score            float64 `json:"score"`
	LegitimacyFactor string  `json:"legitimacy_factor"`
	Reasoning        string  `json:"reasoning"`
	KromID           string  `json:"krom_id"`
}

type Run struct {
	Count    int          `json:"count"`
	Model    string       `json:"model"`
	Duration string       `json:"duration"`
	Results  []CallResult `json:"results"`
}

// AnalyzePending scores the oldest unanalyzed calls one by one. A call whose
// analysis fails is reported with a neutral score and left unscored.
func (s *Service) AnalyzePending(ctx context.Context, limit int, model string) (*Run, error) {
	if limit <= 0 {
		limit = 5
	}
	if model == "" {
		model = s.opts.DefaultModel
	}
	start := s.now()

	calls, err := s.calls.Unanalyzed(ctx, "buy_timestamp", limit)
	if err != nil {
		return nil, fmt.Errorf("load unanalyzed calls: %w", err)
	}
	if len(calls) == 0 {
		return nil, ErrNothingToAnalyze
	}

	run := &Run{Model: model, Results: make([]CallResult, 0, len(calls))}
	for i := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.Results = append(run.Results, s.analyzeOne(ctx, &calls[i], model))
	}
	run.Count = len(run.Results)
	run.Duration = Seconds(s.now().Sub(start))
	return run, nil
}

func (s *Service) analyzeOne(ctx context.Context, c *models.Call, model string) CallResult {
	failed := CallResult{
		Token:            c.Ticker,
		Score:            ai.DefaultScore,
		LegitimacyFactor: "Unknown",
		Reasoning:        "Analysis failed",
		KromID:           c.KromID,
	}

	contract := contractOf(c)
	in := callInput(c)
	in.Contract = contract

	start := s.now()
	text, err := s.ai.Complete(ctx, ai.Request{
		Model:     model,
		Prompt:    ai.CallPrompt(in),
		MaxTokens: 1024,
		JSON:      true,
	})
	if err != nil {
		s.log.Warn("call analysis failed", zap.String("krom_id", c.KromID), zap.Error(err))
		return failed
	}
	res, err := ai.ParseCallJSON(text)
	if err != nil {
		s.log.Warn("unparseable call analysis", zap.String("krom_id", c.KromID), zap.Error(err))
		return failed
	}
	if res.Reasoning == "" {
		res.Reasoning = "No analysis available"
	}

	now := s.now()
	updates := map[string]any{
		"analysis_score":             res.Score,
		"analysis_tier":              models.TierForScore(res.Score),
		"analysis_legitimacy_factor": res.LegitimacyFactor,
		"analysis_model":             model,
		"analysis_reasoning":         res.Reasoning,
		"analysis_prompt_used":       ai.CallPromptID,
		"analysis_duration_ms":       now.Sub(start).Milliseconds(),
		"analyzed_at":                now,
	}
	if res.TokenType != "" {
		updates["analysis_token_type"] = res.TokenType
	}
	if contract != "" && c.ContractAddress == "" {
		updates["contract_address"] = contract
	}
	if err := s.calls.UpdateByID(ctx, c.ID, updates); err != nil {
		s.log.Error("store call analysis", zap.String("krom_id", c.KromID), zap.Error(err))
		return failed
	}

	out := CallResult{
		Token:            c.Ticker,
		Score:            res.Score,
		LegitimacyFactor: res.LegitimacyFactor,
		Reasoning:        res.Reasoning,
		KromID:           c.KromID,
	}
	if contract != "" {
		out.Contract = &contract
	}
	return out
}

type Reanalysis struct {
	KromID            string  `json:"krom_id"`
	Score             float64 `json:"score"`
	Tier              string  `json:"tier"`
	TokenType         string  `json:"token_type"`
	LegitimacyFactor  string  `json:"legitimacy_factor"`
	AnalysisReasoning string  `json:"analysis_reasoning"`
	DurationMS        int64   `json:"duration_ms"`
}

// Reanalyze rescores a single call with the reanalysis prompt.
func (s *Service) Reanalyze(ctx context.Context, kromID, model string) (*Reanalysis, error) {
	if model == "" {
		model = s.opts.DefaultModel
	}
	c, err := s.calls.GetByKromID(ctx, kromID)
	if err != nil {
		return nil, err
	}

	in := callInput(c)
	in.Timestamp = c.CreatedAt.UTC().Format(time.RFC3339)

	start := s.now()
	text, err := s.ai.Complete(ctx, ai.Request{
		Model:     model,
		System:    ai.ReanalysisSystem,
		Prompt:    ai.ReanalysisPrompt(in),
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("reanalyze %s: %w", kromID, err)
	}
	res := ai.ParseCallText(text)
	now := s.now()
	dur := now.Sub(start).Milliseconds()
	tier := models.TierForScore(res.Score)

	err = s.calls.UpdateByID(ctx, c.ID, map[string]any{
		"analysis_score":             res.Score,
		"analysis_tier":              tier,
		"analysis_token_type":        res.TokenType,
		"analysis_legitimacy_factor": res.LegitimacyFactor,
		"analysis_model":             model,
		"analysis_reasoning":         text,
		"analysis_reanalyzed_at":     now,
		"analysis_duration_ms":       dur,
		"analysis_prompt_used":       ai.ReanalysisPromptID,
	})
	if err != nil {
		return nil, fmt.Errorf("store reanalysis: %w", err)
	}
	s.log.Info("call reanalyzed", zap.String("krom_id", kromID), zap.Float64("score", res.Score), zap.String("tier", tier))

	return &Reanalysis{
		KromID:            kromID,
		Score:             res.Score,
		Tier:              tier,
		TokenType:         res.TokenType,
		LegitimacyFactor:  res.LegitimacyFactor,
		AnalysisReasoning: text,
		DurationMS:        dur,
	}, nil
}

type BatchItem struct {
	Token                  string  `json:"token"`
	Contract               *string `json:"contract"`
	Score                  float64 `json:"score"`
	TokenType              string  `json:"token_type"`
	XTokenType             *string `json:"x_token_type"`
	LegitimacyFactor       string  `json:"legitimacy_factor"`
	Reasoning              string  `json:"reasoning"`
	KromID                 string  `json:"krom_id"`
	Network                string  `json:"network"`
	AnalysisReasoning      string  `json:"analysis_reasoning"`
	AnalysisModel          string  `json:"analysis_model"`
	AnalysisDurationMS     int64   `json:"analysis_duration_ms"`
	AnalysisBatchID        string  `json:"analysis_batch_id"`
	AnalysisBatchTimestamp string  `json:"analysis_batch_timestamp"`
	AnalysisPromptUsed     string  `json:"analysis_prompt_used"`
}

type BatchRun struct {
	BatchID       string      `json:"batchId"`
	Count         int         `json:"count"`
	Model         string      `json:"model"`
	Duration      string      `json:"duration"`
	TokensPerCall int         `json:"tokensPerCall"`
	Results       []BatchItem `json:"results"`
}

// AnalyzeBatch scores up to limit unanalyzed calls with a single prompt.
// The response must hold exactly one result per call; anything else is
// reported as ErrBatchParse and nothing is stored.
func (s *Service) AnalyzeBatch(ctx context.Context, limit int, model string) (*BatchRun, error) {
	if limit <= 0 {
		limit = 5
	}
	if model == "" {
		model = s.opts.BatchModel
	}
	calls, err := s.calls.Unanalyzed(ctx, "created_at", limit)
	if err != nil {
		return nil, fmt.Errorf("load unanalyzed calls: %w", err)
	}
	if len(calls) == 0 {
		return nil, ErrNothingToAnalyze
	}

	inputs := make([]ai.CallInput, len(calls))
	for i := range calls {
		inputs[i] = callInput(&calls[i])
	}
	prompt := ai.BatchPrompt(inputs)

	batchID := s.newID()
	start := s.now()
	batchTS := start.UTC()
	text, err := s.ai.Complete(ctx, ai.Request{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   4000,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("batch analysis: %w", err)
	}
	results, err := ai.ParseBatch(text, len(calls))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatchParse, err)
	}

	elapsed := s.now().Sub(start)
	perCall := elapsed.Milliseconds() / int64(len(calls))
	label := ai.BatchPromptLabel(len(calls))
	storedModel := model
	if strings.HasPrefix(model, "gemini") {
		storedModel = "google/" + model
	}

	run := &BatchRun{
		BatchID:       batchID,
		Model:         model,
		TokensPerCall: (len(prompt) + len(text)) / len(calls),
		Results:       make([]BatchItem, 0, len(calls)),
	}
	for i := range calls {
		c, res := &calls[i], results[i]
		err := s.calls.UpdateByID(ctx, c.ID, map[string]any{
			"analysis_score":             res.Score,
			"analysis_tier":              models.TierForScore(res.Score),
			"analysis_token_type":        res.TokenType,
			"analysis_legitimacy_factor": res.LegitimacyFactor,
			"analysis_model":             storedModel,
			"analysis_reasoning":         res.Reasoning,
			"analysis_batch_id":          batchID,
			"analysis_batch_timestamp":   batchTS,
			"analysis_prompt_used":       label,
			"analysis_duration_ms":       perCall,
			"analyzed_at":                s.now(),
		})
		if err != nil {
			s.log.Error("store batch result", zap.String("krom_id", c.KromID), zap.Error(err))
			continue
		}
		item := BatchItem{
			Token:                  c.Ticker,
			Score:                  res.Score,
			TokenType:              res.TokenType,
			LegitimacyFactor:       res.LegitimacyFactor,
			Reasoning:              res.Reasoning,
			KromID:                 c.KromID,
			Network:                networkOf(c),
			AnalysisReasoning:      res.Reasoning,
			AnalysisModel:          storedModel,
			AnalysisDurationMS:     perCall,
			AnalysisBatchID:        batchID,
			AnalysisBatchTimestamp: batchTS.Format(time.RFC3339),
			AnalysisPromptUsed:     label,
		}
		if ca := contractOf(c); ca != "" {
			item.Contract = &ca
		}
		if c.XAnalysisTokenType != "" {
			item.XTokenType = ptr(c.XAnalysisTokenType)
		}
		run.Results = append(run.Results, item)
	}
	run.Count = len(run.Results)
	run.Duration = Seconds(elapsed)
	s.log.Info("batch analyzed", zap.String("batch_id", batchID), zap.Int("count", run.Count), zap.Duration("took", elapsed))
	return run, nil
}
