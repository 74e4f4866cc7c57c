// Package audit is the security-event side channel of the intake pipeline.
// Every gate outcome that terminates a request produces exactly one event;
// a successful submission produces exactly one acceptance event.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/thermaworks/intake/pkg/contracts"
)

// Kind categorizes a security event. There is one kind per pipeline gate
// that can reject, plus storage and system failures and the success path.
type Kind string

const (
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	KindInvalidOrigin     Kind = "INVALID_ORIGIN"
	KindCSRFTokenInvalid  Kind = "CSRF_TOKEN_INVALID"
	KindTimestampInvalid  Kind = "TIMESTAMP_INVALID"
	KindSignatureMissing  Kind = "SIGNATURE_MISSING"
	KindDecodeFailed      Kind = "DECODE_FAILED"
	KindSignatureInvalid  Kind = "SIGNATURE_INVALID"
	KindNonceReplayed     Kind = "NONCE_REPLAYED"
	KindValidationFailed  Kind = "VALIDATION_FAILED"
	KindMissingBody       Kind = "MISSING_BODY"
	KindStorageError      Kind = "STORAGE_ERROR"
	KindSystemError       Kind = "SYSTEM_ERROR"
	KindSubmissionOK      Kind = "SUBMISSION_SUCCESS"
)

// Event is one structured security record. Events are append-only and
// owned by the sink once recorded.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"event_type"`
	ClientIP  string    `json:"client_ip"`
	UserAgent string    `json:"user_agent"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh ID and timestamp from the client
// context snapshot.
func NewEvent(kind Kind, client contracts.ClientContext, details string) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}
