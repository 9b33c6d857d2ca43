package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/wikiqa/internal/model"
)

const (
	// AskBatchWorkflowName is the registered workflow type.
	AskBatchWorkflowName = "AskBatchWorkflow"
	// AnswerQuestionActivity is the registered activity type.
	AnswerQuestionActivity = "AnswerQuestion"

	defaultActivityTimeout = 5 * time.Minute
	defaultWindow          = 4
)

// WorkflowInput is the argument of AskBatchWorkflow.
type WorkflowInput struct {
	Questions       []Question    `json:"questions"`
	MaxConcurrent   int           `json:"max_concurrent"`
	ActivityTimeout time.Duration `json:"activity_timeout"`
}

// AskBatchWorkflow answers each question through the AnswerQuestion
// activity, at most MaxConcurrent at a time. A question whose activity fails
// after retries is recorded as failed; the workflow itself only fails on
// invalid input.
func AskBatchWorkflow(ctx workflow.Context, in WorkflowInput) (*Report, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "ask-batch.v", workflow.DefaultVersion, currentVersion)

	if len(in.Questions) == 0 {
		return nil, temporal.NewNonRetryableApplicationError("batch has no questions", "Validation", nil)
	}

	timeout := in.ActivityTimeout
	if timeout <= 0 {
		timeout = defaultActivityTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	window := in.MaxConcurrent
	if window < 1 {
		window = defaultWindow
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("batch workflow started", "questions", len(in.Questions), "window", window)

	start := workflow.Now(ctx)
	results := make([]Result, len(in.Questions))
	for lo := 0; lo < len(in.Questions); lo += window {
		hi := min(lo+window, len(in.Questions))

		futures := make([]workflow.Future, 0, hi-lo)
		for _, q := range in.Questions[lo:hi] {
			futures = append(futures, workflow.ExecuteActivity(ctx, AnswerQuestionActivity, q))
		}
		for i, f := range futures {
			q := in.Questions[lo+i]
			var res Result
			if err := f.Get(ctx, &res); err != nil {
				logger.Warn("question failed", "id", q.ID, "error", err)
				res = Result{ID: q.ID, Question: q.Question, Expected: q.Expected, Answer: model.NoAnswer, Error: err.Error()}
			}
			results[lo+i] = res
		}
	}

	rep := Summarize(results)
	rep.DurationMs = workflow.Now(ctx).Sub(start).Milliseconds()
	logger.Info("batch workflow complete", "found", rep.Found, "failed", rep.Failed)
	return rep, nil
}

// Activities hosts the batch activities.
type Activities struct {
	asker Asker
}

// NewActivities creates the activity host.
func NewActivities(asker Asker) *Activities {
	return &Activities{asker: asker}
}

// AnswerQuestion answers one question. Pipeline errors are returned so
// Temporal retries them.
func (a *Activities) AnswerQuestion(ctx context.Context, q Question) (*Result, error) {
	activity.GetLogger(ctx).Info("answering question", "id", q.ID)
	activity.RecordHeartbeat(ctx, q.ID)

	start := time.Now()
	ar, err := a.asker.Ask(ctx, q.Question)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: answer %s", q.ID)
	}
	res := &Result{ID: q.ID, Question: q.Question, Expected: q.Expected}
	fill(res, ar)
	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}

// Register adds the batch workflow and activities to a worker.
func Register(w worker.Registry, acts *Activities) {
	w.RegisterWorkflowWithOptions(AskBatchWorkflow, workflow.RegisterOptions{Name: AskBatchWorkflowName})
	w.RegisterActivityWithOptions(acts.AnswerQuestion, activity.RegisterOptions{Name: AnswerQuestionActivity})
}

// Submit starts AskBatchWorkflow on taskQueue and waits for its report.
func Submit(ctx context.Context, c client.Client, taskQueue string, in WorkflowInput) (*Report, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "wikiqa-batch-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}, AskBatchWorkflowName, in)
	if err != nil {
		return nil, eris.Wrap(err, "batch: start workflow")
	}

	var rep Report
	if err := run.Get(ctx, &rep); err != nil {
		return nil, eris.Wrapf(err, "batch: workflow %s", run.GetID())
	}
	return &rep, nil
}
