package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wikiqa",
	Short: "Answer natural-language questions from Wikipedia",
	Long:  "Decomposes a question into search queries, ranks Wikipedia pages by summary similarity, and extracts answer spans with an extractive QA model.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
