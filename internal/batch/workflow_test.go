package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/wikiqa/internal/model"
)

func newWorkflowEnv(asker Asker) *testsuite.TestWorkflowEnvironment {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(AskBatchWorkflow, workflow.RegisterOptions{Name: AskBatchWorkflowName})
	env.RegisterActivityWithOptions(NewActivities(asker).AnswerQuestion, activity.RegisterOptions{Name: AnswerQuestionActivity})
	return env
}

func TestAskBatchWorkflow(t *testing.T) {
	asker := &tableAsker{answers: map[string]string{
		"q1": "Shakespeare",
		"q2": "Paris",
		"q3": "",
	}}
	env := newWorkflowEnv(asker)

	env.ExecuteWorkflow(AskBatchWorkflowName, WorkflowInput{
		Questions: []Question{
			{ID: "1", Question: "q1", Expected: "Shakespeare"},
			{ID: "2", Question: "q2", Expected: "Lyon"},
			{ID: "3", Question: "q3"},
		},
		MaxConcurrent: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var rep Report
	require.NoError(t, env.GetWorkflowResult(&rep))
	require.Len(t, rep.Results, 3)
	assert.Equal(t, "1", rep.Results[0].ID)
	assert.True(t, rep.Results[0].ExactMatch)
	assert.Equal(t, "Paris", rep.Results[1].Answer)
	assert.False(t, rep.Results[1].ExactMatch)
	assert.Equal(t, model.NoAnswer, rep.Results[2].Answer)
	assert.Equal(t, 2, rep.Found)
	assert.Equal(t, 2, rep.Evaluated)
	assert.InDelta(t, 0.5, rep.ExactAccuracy, 1e-9)
}

func TestAskBatchWorkflowRecordsFailedQuestions(t *testing.T) {
	asker := &tableAsker{answers: map[string]string{"ok": "Paris"}}
	env := newWorkflowEnv(asker)

	env.ExecuteWorkflow(AskBatchWorkflowName, WorkflowInput{
		Questions: []Question{
			{ID: "1", Question: "broken"},
			{ID: "2", Question: "ok"},
		},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var rep Report
	require.NoError(t, env.GetWorkflowResult(&rep))
	require.Len(t, rep.Results, 2)
	assert.Equal(t, 1, rep.Failed)
	assert.Contains(t, rep.Results[0].Error, "pipeline unavailable")
	assert.Equal(t, model.NoAnswer, rep.Results[0].Answer)
	assert.Equal(t, "Paris", rep.Results[1].Answer)
	// The failing activity is retried before being recorded.
	assert.Equal(t, 4, asker.calls)
}

func TestAskBatchWorkflowRejectsEmptyInput(t *testing.T) {
	env := newWorkflowEnv(&tableAsker{})

	env.ExecuteWorkflow(AskBatchWorkflowName, WorkflowInput{})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Validation", appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestAnswerQuestionActivity(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	acts := NewActivities(&tableAsker{answers: map[string]string{"q": "Paris"}})
	env.RegisterActivity(acts.AnswerQuestion)

	val, err := env.ExecuteActivity(acts.AnswerQuestion, Question{ID: "7", Question: "q", Expected: "paris"})
	require.NoError(t, err)

	var res Result
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "7", res.ID)
	assert.Equal(t, "Paris", res.Answer)
	assert.True(t, res.ExactMatch)
	assert.InDelta(t, 4.5, res.Score, 1e-9)

	_, err = env.ExecuteActivity(acts.AnswerQuestion, Question{ID: "8", Question: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline unavailable")
}
