// Package cmd holds the krom-analysis command line: the HTTP server and the
// one-shot batch jobs that the cron endpoints also expose.
package cmd

import (
	"fmt"
	"os"

	"krom-analysis/config"
	"krom-analysis/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath string

	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "krom-analysis",
	Short: "Crypto call analytics: dashboard, price tracking and AI scoring",
	Long: `krom-analysis serves the call dashboard and JSON API over the crypto_calls
table and runs the batch jobs that fill in prices and AI analysis.

Run "krom-analysis serve" to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err = logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, fetchPricesCmd, analyzeCmd, xAnalyzeCmd, migrateCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
