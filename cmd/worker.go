package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/batch"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker for batch workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
			MaxConcurrentActivityExecutionSize: cfg.Batch.MaxConcurrent,
		})
		batch.Register(w, batch.NewActivities(env.Pipeline))

		zap.L().Info("starting worker",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
