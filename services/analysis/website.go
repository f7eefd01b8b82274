package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"krom-analysis/models"
	"krom-analysis/services/ai"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AnalyzeWebsite scrapes a discovery token's website and stores a stage-1
// score. A site that cannot be fetched is stored as TRASH with zero text
// length so it shows up as a failed scrape.
func (s *Service) AnalyzeWebsite(ctx context.Context, id uint) (*models.Stage1Analysis, error) {
	tok, err := s.discovery.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tok.WebsiteURL == "" {
		return nil, ErrNoWebsite
	}

	var out models.Stage1Analysis
	page, err := s.pages.Fetch(ctx, tok.WebsiteURL)
	if err != nil {
		s.log.Warn("website scrape failed", zap.Uint("id", id), zap.String("url", tok.WebsiteURL), zap.Error(err))
		out = models.Stage1Analysis{
			Score:     1,
			Tier:      models.TierTrash,
			Reasoning: "Website could not be scraped: " + err.Error(),
		}
	} else {
		text, err := s.ai.Complete(ctx, ai.Request{
			Model:     s.opts.DefaultModel,
			System:    ai.WebsiteSystem,
			Prompt:    ai.WebsitePrompt(tok.Symbol, tok.WebsiteURL, page.Title, page.Text),
			MaxTokens: 500,
			JSON:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("analyze website: %w", err)
		}
		res, err := ai.ParseWebsite(text)
		if err != nil {
			return nil, fmt.Errorf("analyze website: %w", err)
		}
		if res.Tier == "" {
			res.Tier = models.TierForScore(res.Score)
		}
		out = models.Stage1Analysis{
			Score:     res.Score,
			Tier:      res.Tier,
			Reasoning: res.Reasoning,
			Model:     s.opts.DefaultModel,
			ScrapeMetrics: models.ScrapeMetrics{
				TextLength: len(page.Text),
				LinkCount:  page.LinkCount,
				Title:      page.Title,
			},
		}
	}

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	err = s.discovery.Update(ctx, id, map[string]any{
		"website_stage1_score":    out.Score,
		"website_stage1_tier":     out.Tier,
		"website_stage1_analysis": datatypes.JSON(doc),
		"website_analyzed_at":     s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("store website analysis: %w", err)
	}
	return &out, nil
}
