package dispatcher

import "fmt"

// JobError wraps a processing failure with its retry class.
type JobError struct {
	JobID   string
	Attempt int
	Fatal   bool
	Err     error
}

func (e *JobError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("job %s attempt %d (%s): %v", e.JobID, e.Attempt, kind, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// ValidationError represents a job that can never succeed as submitted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}
