package domain

// Task is one unit of work: a prompt bound for the generation API plus
// whatever metadata the caller attached to it. The ID may be any value the
// caller chose; tasks submitted without one get their ordinal position.
type Task struct {
	ID     any            `json:"id"`
	Prompt string         `json:"prompt"`
	Meta   map[string]any `json:"meta,omitempty"`

	// ErrorCount tracks task-attributed failures only. Key-attributed
	// failures requeue the task without touching it.
	ErrorCount int `json:"error_count,omitempty"`
}

// GenParams are the model parameters shared by every call in a batch.
type GenParams struct {
	Model             string
	Temperature       float64
	SystemInstruction string
}
