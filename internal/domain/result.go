package domain

// Result is the terminal outcome of a task, successful or not.
type Result struct {
	Task          Task
	Output        any
	Success       bool
	FailureReason string
}

// Record flattens the result into the checkpoint representation: the task's
// metadata verbatim, the id and prompt under their configured field names,
// and the outcome fields. Failure records additionally carry the attempted
// task-error count and the failure reason.
func (r Result) Record(idKey, promptKey string) map[string]any {
	rec := make(map[string]any, len(r.Task.Meta)+6)
	for k, v := range r.Task.Meta {
		rec[k] = v
	}
	rec[idKey] = r.Task.ID
	rec[promptKey] = r.Task.Prompt
	rec["result"] = r.Output
	rec["success"] = r.Success
	if !r.Success {
		rec["task_errors_attempted"] = r.Task.ErrorCount
		rec["failure_reason"] = r.FailureReason
	}
	return rec
}
