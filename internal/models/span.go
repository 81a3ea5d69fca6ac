package models

import (
	"fmt"
	"strings"
)

// SpanGroup is a multi-period class committed or cancelled as one unit.
type SpanGroup struct {
	SpanID  string           `json:"spanId"`
	Members []ScheduledClass `json:"members"`
}

// SpanCommitResult is the outcome of committing a span: either created ids or the blocking report.
type SpanCommitResult struct {
	SpanID  string           `json:"spanId"`
	Created []string         `json:"created"`
	Members []ScheduledClass `json:"members,omitempty"`
	Report  *ConflictReport  `json:"report,omitempty"`
}

// Rejected reports whether the span was refused because of conflicts.
func (r *SpanCommitResult) Rejected() bool {
	return r != nil && r.Report != nil && r.Report.HasConflicts
}

// PartialSpanFailureError means a rollback could not remove every member that was already persisted.
type PartialSpanFailureError struct {
	SpanID      string   `json:"spanId"`
	Orphaned    []string `json:"orphaned"`
	Cause       error    `json:"-"`
	RollbackErr error    `json:"-"`
}

// Error implements the error interface.
func (e *PartialSpanFailureError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("partial span failure for span %s: orphaned members [%s]: commit error: %v; rollback error: %v",
		e.SpanID, strings.Join(e.Orphaned, ", "), e.Cause, e.RollbackErr)
}

// Unwrap exposes the commit failure that triggered the rollback.
func (e *PartialSpanFailureError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
