package domain

type RunStatus string

const (
	RunSuccess   RunStatus = "SUCCESS"
	RunNoSources RunStatus = "NO_SOURCES"
	RunFailure   RunStatus = "FAILURE"
)

// FailureDetail carries enough context for the caller to render an
// actionable message: which stage broke, the error kind, and the
// underlying message.
type FailureDetail struct {
	Stage   Stage  `json:"stage,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is the terminal output of AnswerQuestion. A NO_SOURCES run
// is a normal outcome, not a failure; Uncited marks a SUCCESS answer
// that contains no citation markers.
type Result struct {
	RunID   string            `json:"run_id"`
	Status  RunStatus         `json:"status"`
	Uncited bool              `json:"uncited,omitempty"`
	Answer  *StructuredAnswer `json:"answer,omitempty"`
	Failure *FailureDetail    `json:"failure,omitempty"`
	Trace   []StageRecord     `json:"trace"`
}
