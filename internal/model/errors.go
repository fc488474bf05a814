package model

import "fmt"

// The error types below form the full failure taxonomy of the pipeline.
// Every operation returns one of them (or nil); nothing is fatal to the
// process. Callers discriminate with errors.As and render messaging
// without inspecting internals.

// ValidationError reports malformed or incomplete caller input. The
// caller can resubmit corrected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// QuotaExceededError reports that the account's tier limit for the
// current period has been reached. Never retried automatically.
type QuotaExceededError struct {
	Label string
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: plan %q allows %d documents per month", e.Label, e.Limit)
}

// ParseError reports model output that failed schema validation. It
// carries the offending raw text for diagnostics. Retrying the request
// is a valid caller-side strategy; the core never retries parsing.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return "parse model output: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError reports an absent document or account record. Terminal.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IndexOutOfRangeError reports an edit addressing a question that does
// not exist, which indicates a stale client view. Terminal.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("question index %d out of range (document has %d questions)", e.Index, e.Len)
}
