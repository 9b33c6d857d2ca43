package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/batch"
)

var batchCmd = &cobra.Command{
	Use:   "batch <questions-file>",
	Short: "Answer every question in a file",
	Long:  "Reads questions from a .yaml, .json (SQuAD v2 or list), .csv, .xlsx or plain text file, answers them, and reports accuracy when expected answers are present.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		questions, err := batch.LoadQuestions(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && limit < len(questions) {
			questions = questions[:limit]
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}

		var rep *batch.Report
		useTemporal, _ := cmd.Flags().GetBool("temporal")
		if useTemporal {
			c, err := dialTemporal()
			if err != nil {
				return err
			}
			defer c.Close()

			zap.L().Info("submitting batch workflow",
				zap.Int("questions", len(questions)),
				zap.String("task_queue", cfg.Temporal.TaskQueue),
			)
			rep, err = batch.Submit(ctx, c, cfg.Temporal.TaskQueue, batch.WorkflowInput{
				Questions:     questions,
				MaxConcurrent: concurrency,
			})
			if err != nil {
				return err
			}
		} else {
			env, err := initPipeline(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			rep = batch.NewRunner(env.Pipeline, concurrency).Run(ctx, questions)
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			if err := batch.Export(out, rep); err != nil {
				return err
			}
			zap.L().Info("batch report written", zap.String("path", out))
		}
		formatReport(os.Stdout, rep)
		return nil
	},
}

func init() {
	batchCmd.Flags().String("out", "", "write results to this file (.xlsx or .json)")
	batchCmd.Flags().Int("concurrency", 0, "questions answered at once (default from config)")
	batchCmd.Flags().Int("limit", 0, "answer at most this many questions (0 = all)")
	batchCmd.Flags().Bool("temporal", false, "run as a Temporal workflow on the configured task queue")
	rootCmd.AddCommand(batchCmd)
}

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dial temporal")
	}
	return c, nil
}

// formatReport writes batch totals to w.
func formatReport(out io.Writer, rep *batch.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Questions:\t%d\n", rep.Total)
	_, _ = fmt.Fprintf(w, "Answered:\t%d\n", rep.Found)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", rep.Failed)
	if rep.Evaluated > 0 {
		_, _ = fmt.Fprintf(w, "Evaluated:\t%d\n", rep.Evaluated)
		_, _ = fmt.Fprintf(w, "Exact match:\t%d (%.1f%%)\n", rep.Exact, rep.ExactAccuracy*100)
		_, _ = fmt.Fprintf(w, "Contains match:\t%d (%.1f%%)\n", rep.Contains, rep.ContainsAccuracy*100)
	}
	_, _ = fmt.Fprintf(w, "Duration:\t%dms\n", rep.DurationMs)
	_ = w.Flush()
}
