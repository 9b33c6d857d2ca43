package model

// Stage names a step of the per-query state machine.
type Stage string

const (
	StageSearch      Stage = "search"
	StageRank        Stage = "rank"
	StageFastExtract Stage = "fast_extract"
	StageSlowExtract Stage = "slow_extract"
)

// BranchStatus is the terminal state of one query candidate's branch.
type BranchStatus string

const (
	BranchAccepted BranchStatus = "accepted"
	BranchEmpty    BranchStatus = "empty"
	BranchRejected BranchStatus = "rejected"
	BranchFailed   BranchStatus = "failed"
)

// BranchResult traces how one query candidate was resolved.
type BranchResult struct {
	Query      string       `json:"query"`
	Page       string       `json:"page,omitempty"`
	PageURL    string       `json:"page_url,omitempty"`
	Stage      Stage        `json:"stage"`
	Status     BranchStatus `json:"status"`
	Answers    int          `json:"answers"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// AskResult is the full outcome of answering one question.
type AskResult struct {
	RunID      string            `json:"run_id,omitempty"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Found      bool              `json:"found"`
	Best       *AnswerCandidate  `json:"best,omitempty"`
	Queries    []string          `json:"queries"`
	Entities   []string          `json:"entities,omitempty"`
	Candidates []AnswerCandidate `json:"candidates"`
	Branches   []BranchResult    `json:"branches"`
	DurationMs int64             `json:"duration_ms"`
}
