package cmd

import (
	"errors"

	"krom-analysis/database"
	"krom-analysis/services/analysis"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	jobLimit int
	jobModel string
	jobBatch bool
)

var fetchPricesCmd = &cobra.Command{
	Use:   "fetch-prices",
	Short: "Backfill historical prices for analyzed calls",
	Long: `Fetches price at call, ATH and current price from GeckoTerminal for
analyzed calls that have a contract but no price yet, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		res, err := a.pricing.BatchFetch(cmd.Context(), limitOr(cfg.Cron.PriceBatch))
		if err != nil {
			return err
		}
		log.Info("price fetch finished",
			zap.String("message", res.Message),
			zap.Int("processed", res.Processed),
			zap.Int("successful", res.Successful),
			zap.Int("failed", res.Failed))
		for _, e := range res.Errors {
			log.Warn("price fetch error", zap.Any("error", e))
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score unanalyzed calls with the AI model",
	Long: `Scores the oldest unanalyzed calls one by one, or with --batch in a single
model request that returns one result per call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if jobBatch {
			run, err := a.analysis.AnalyzeBatch(cmd.Context(), limitOr(5), jobModel)
			if errors.Is(err, analysis.ErrNothingToAnalyze) {
				log.Info("no unanalyzed calls")
				return nil
			}
			if err != nil {
				return err
			}
			log.Info("batch analysis finished",
				zap.String("batch_id", run.BatchID),
				zap.Int("count", run.Count),
				zap.String("model", run.Model),
				zap.String("duration", run.Duration))
			return nil
		}

		run, err := a.analysis.AnalyzePending(cmd.Context(), limitOr(cfg.Cron.AnalyzeBatch), jobModel)
		if errors.Is(err, analysis.ErrNothingToAnalyze) {
			log.Info("no unanalyzed calls")
			return nil
		}
		if err != nil {
			return err
		}
		for _, r := range run.Results {
			log.Info("call scored", zap.String("krom_id", r.KromID), zap.String("token", r.Token), zap.Float64("score", r.Score))
		}
		log.Info("analysis finished", zap.Int("count", run.Count), zap.String("model", run.Model), zap.String("duration", run.Duration))
		return nil
	},
}

var xAnalyzeCmd = &cobra.Command{
	Use:   "x-analyze",
	Short: "Scrape and score tweets for calls without X analysis",
	Long: `Scrapes recent tweets mentioning each call's contract and scores them. With
--rescore, stored tweets are rescored in one batch without scraping.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if jobBatch {
			run, err := a.analysis.XBatch(cmd.Context(), limitOr(cfg.Cron.XBatch), jobModel)
			if err != nil {
				return err
			}
			log.Info("x rescore finished",
				zap.String("batch_id", run.BatchID),
				zap.Int("analyzed", run.Analyzed),
				zap.Int("errors", len(run.Errors)),
				zap.Int64("duration_ms", run.TotalDurationMS))
			return nil
		}

		if !xConfigured(cfg) {
			return errors.New("x.scraperapi_key (or SCRAPERAPI_KEY) is required to scrape tweets")
		}
		run, err := a.analysis.AnalyzeXPending(cmd.Context(), limitOr(cfg.Cron.XBatch))
		if err != nil {
			return err
		}
		for _, e := range run.Errors {
			log.Warn("x analysis failed", zap.String("krom_id", e.KromID), zap.String("error", e.Error))
		}
		log.Info("x analysis finished",
			zap.Int("processed", run.Processed),
			zap.Int("successful", run.Successful),
			zap.Int("failed", run.Failed))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN, true); err != nil {
			return err
		}
		log.Info("migration complete", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func limitOr(def int) int {
	if jobLimit > 0 {
		return jobLimit
	}
	return def
}

func init() {
	for _, c := range []*cobra.Command{fetchPricesCmd, analyzeCmd, xAnalyzeCmd} {
		c.Flags().IntVarP(&jobLimit, "limit", "n", 0, "number of calls to process (default from cron config)")
	}
	for _, c := range []*cobra.Command{analyzeCmd, xAnalyzeCmd} {
		c.Flags().StringVar(&jobModel, "model", "", "model override")
	}
	analyzeCmd.Flags().BoolVar(&jobBatch, "batch", false, "score all calls in one model request")
	xAnalyzeCmd.Flags().BoolVar(&jobBatch, "rescore", false, "rescore stored tweets instead of scraping")
}
