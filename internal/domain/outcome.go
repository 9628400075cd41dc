package domain

// OutcomeKind classifies a single call attempt. The kind alone decides how
// the worker routes the task afterwards.
type OutcomeKind uint8

const (
	// OutcomeSuccess carries the generated payload; terminal for the task.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeKeyIssue means the credential misbehaved (rate limit, quota,
	// suspension). The task is requeued without counting a retry.
	OutcomeKeyIssue
	// OutcomeTaskIssue means the task itself failed (bad prompt, unparsable
	// output). Counts against the per-task retry budget.
	OutcomeTaskIssue
	// OutcomeSkip means the slot was unavailable; no call was made.
	OutcomeSkip
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeKeyIssue:
		return "key_issue"
	case OutcomeTaskIssue:
		return "task_issue"
	case OutcomeSkip:
		return "skip"
	}
	return "unknown"
}

// Outcome is the result of one call attempt through a slot.
type Outcome struct {
	Kind    OutcomeKind
	Payload any
}
