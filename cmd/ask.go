package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wikiqa/internal/model"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return eris.New("question is empty")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Ask(ctx, question)
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		formatAnswer(os.Stdout, res, verbose)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("json", false, "print the full result as JSON")
	askCmd.Flags().BoolP("verbose", "v", false, "show query candidates and branch traces")
	rootCmd.AddCommand(askCmd)
}

// formatAnswer writes the answer and, when verbose, how it was found.
func formatAnswer(out io.Writer, res *model.AskResult, verbose bool) {
	_, _ = fmt.Fprintln(out, res.Answer)
	if !verbose {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w)
	if res.Best != nil {
		_, _ = fmt.Fprintf(w, "Page:\t%s\n", res.Best.PageTitle)
		_, _ = fmt.Fprintf(w, "Source:\t%s\n", res.Best.Source)
		_, _ = fmt.Fprintf(w, "Score:\t%.3f\n", res.Best.Score)
	}
	_, _ = fmt.Fprintf(w, "Entities:\t%s\n", strings.Join(res.Entities, ", "))
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "QUERY\tPAGE\tSTAGE\tSTATUS\tANSWERS\tDURATION")
	for _, b := range res.Branches {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%dms\n",
			b.Query, b.Page, b.Stage, b.Status, b.Answers, b.DurationMs)
	}
	_ = w.Flush()
}
