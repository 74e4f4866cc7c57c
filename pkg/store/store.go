// Package store persists gated submissions and security events. Two
// implementations share one schema: a file-based SQLite store for single
// instances and a Postgres store for shared deployments.
package store

import (
	"context"
	"errors"

	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/contracts"
)

var (
	// ErrDuplicateRequestID indicates the uniqueness constraint on
	// request_id rejected an insert. With server-generated UUIDs this
	// signals a programming error, not client behavior.
	ErrDuplicateRequestID = errors.New("duplicate request id")

	// ErrNotFound indicates no record matched.
	ErrNotFound = errors.New("record not found")
)

// RequestStore is the persistence contract of the pipeline. Each insert is
// a single atomic write; no partial rows become visible to readers.
type RequestStore interface {
	// InsertSubmission writes one record. Called at most once per pipeline
	// execution that reaches the store step.
	InsertSubmission(ctx context.Context, record *contracts.SubmissionRecord) error

	// InsertSecurityEvent appends one event to the security log table.
	InsertSecurityEvent(ctx context.Context, event audit.Event) error

	// ListRecent returns the most recent submissions, newest first.
	ListRecent(ctx context.Context, limit int) ([]*contracts.SubmissionRecord, error)
}
