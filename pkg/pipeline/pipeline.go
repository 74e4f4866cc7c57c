// Package pipeline orchestrates the ordered gate chain over a signed
// submission envelope: rate limit, origin, CSRF shape, replay window,
// signature, payload decode, field validation, sanitization, storage. The
// gate order and short-circuit behavior are an explicit contract; every
// terminal outcome emits exactly one security event.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/codec"
	"github.com/thermaworks/intake/pkg/contracts"
	"github.com/thermaworks/intake/pkg/crypto"
	"github.com/thermaworks/intake/pkg/guard"
	"github.com/thermaworks/intake/pkg/ratelimit"
	"github.com/thermaworks/intake/pkg/sanitize"
	"github.com/thermaworks/intake/pkg/store"
	"github.com/thermaworks/intake/pkg/validate"
)

// State names one position in the pipeline's linear state machine.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateRateChecked      State = "RATE_CHECKED"
	StateOriginChecked    State = "ORIGIN_CHECKED"
	StateCSRFChecked      State = "CSRF_CHECKED"
	StateTimestampChecked State = "TIMESTAMP_CHECKED"
	StateSignatureChecked State = "SIGNATURE_CHECKED"
	StateDecoded          State = "DECODED"
	StateFieldsValidated  State = "FIELDS_VALIDATED"
	StateSanitized        State = "SANITIZED"
	StateStored           State = "STORED"
	StateAcknowledged     State = "ACKNOWLEDGED"
	StateFailed           State = "FAILED"
)

// Result is the terminal outcome of one pipeline execution.
type Result struct {
	// State is StateAcknowledged on success, StateFailed otherwise.
	State State
	// Reason tags the gate that rejected the request; empty on success.
	Reason audit.Kind
	// Status is the HTTP status the transport should answer with.
	Status int
	// Message is safe for the client; internal details never appear here.
	Message string
	// Errors carries per-field violations for validation failures only.
	Errors []contracts.FieldError
	// Record is the stored record on success.
	Record *contracts.SubmissionRecord
}

// Observer receives the terminal outcome of each execution.
type Observer interface {
	ObserveSubmission(ctx context.Context, state State, reason audit.Kind, elapsed time.Duration)
}

// Pipeline wires the gates to their process-scoped state. All state is
// injected at construction; the pipeline itself is safe for concurrent
// Submit calls.
type Pipeline struct {
	limiter  ratelimit.WindowStore
	policy   ratelimit.Policy
	origins  *guard.OriginGuard
	replay   *guard.ReplayGuard
	nonces   *guard.NonceCache
	verifier crypto.Verifier
	fields   *validate.Validator
	requests store.RequestStore
	sink     audit.Sink
	observer Observer
	logger   *slog.Logger
	clock    func() time.Time
}

// Options configures a Pipeline. Limiter, Verifier, Requests, and Sink are
// required; Nonces and Observer are optional.
type Options struct {
	Limiter  ratelimit.WindowStore
	Policy   ratelimit.Policy
	Origins  *guard.OriginGuard
	Replay   *guard.ReplayGuard
	Nonces   *guard.NonceCache
	Verifier crypto.Verifier
	Requests store.RequestStore
	Sink     audit.Sink
	Observer Observer
	Logger   *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		limiter:  opts.Limiter,
		policy:   opts.Policy,
		origins:  opts.Origins,
		replay:   opts.Replay,
		nonces:   opts.Nonces,
		verifier: opts.Verifier,
		fields:   validate.New(),
		requests: opts.Requests,
		sink:     opts.Sink,
		observer: opts.Observer,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// rejection is a gate's terminal verdict.
type rejection struct {
	kind    audit.Kind
	status  int
	message string
	details string
	errors  []contracts.FieldError
}

// run carries per-request state across gates.
type run struct {
	env    contracts.SignedEnvelope
	client contracts.ClientContext

	submission *contracts.Submission
	rawPayload map[string]interface{}
}

// gate is one ordered check. The entered state names the transition taken
// when the gate passes.
type gate struct {
	entered State
	check   func(ctx context.Context, r *run) *rejection
}

// Submit executes the full gate chain for one envelope. Unexpected faults
// are caught here, logged with full detail, and surfaced only as a generic
// internal error.
func (p *Pipeline) Submit(ctx context.Context, env contracts.SignedEnvelope, client contracts.ClientContext) (result Result) {
	started := p.clock()

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("pipeline panic", "panic", rec, "client_ip", client.IP)
			p.emit(ctx, audit.NewEvent(audit.KindSystemError, client, fmt.Sprintf("panic: %v", rec)))
			result = Result{
				State:   StateFailed,
				Reason:  audit.KindSystemError,
				Status:  http.StatusInternalServerError,
				Message: "internal error, please retry later",
			}
		}
		p.observe(ctx, result, p.clock().Sub(started))
	}()

	r := &run{env: env, client: client}

	for _, g := range p.gates() {
		if rej := g.check(ctx, r); rej != nil {
			p.logger.Debug("gate rejected", "gate", string(g.entered), "reason", string(rej.kind))
			p.emit(ctx, audit.NewEvent(rej.kind, client, rej.details))
			return Result{
				State:   StateFailed,
				Reason:  rej.kind,
				Status:  rej.status,
				Message: rej.message,
				Errors:  rej.errors,
			}
		}
	}

	// Sanitization runs exactly once, strictly after validation.
	sanitize.Submission(r.submission)

	record := &contracts.SubmissionRecord{
		RequestID:   uuid.New().String(),
		Submission:  *r.submission,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
		SubmittedAt: p.clock().UTC(),
	}

	if err := p.requests.InsertSubmission(ctx, record); err != nil {
		p.logger.Error("submission insert failed", "error", err, "request_id", record.RequestID)
		p.emit(ctx, audit.NewEvent(audit.KindStorageError, client, "submission insert failed"))
		return Result{
			State:   StateFailed,
			Reason:  audit.KindStorageError,
			Status:  http.StatusInternalServerError,
			Message: "storage failure, please retry later",
		}
	}

	if p.nonces != nil {
		p.nonces.Remember(env.Nonce)
	}

	p.emit(ctx, audit.NewEvent(audit.KindSubmissionOK, client, "submission accepted: "+record.RequestID))
	p.logger.Info("submission stored", "request_id", record.RequestID)

	return Result{
		State:   StateAcknowledged,
		Status:  http.StatusOK,
		Message: "submission accepted",
		Record:  record,
	}
}

// gates returns the fixed-order gate chain. Signature presence is checked
// before decode; cryptographic verification needs the decoded payload and
// follows it, matching the wire protocol's failure taxonomy.
func (p *Pipeline) gates() []gate {
	return []gate{
		{StateRateChecked, p.checkRate},
		{StateOriginChecked, p.checkOrigin},
		{StateCSRFChecked, p.checkCSRF},
		{StateTimestampChecked, p.checkTimestamp},
		{StateSignatureChecked, p.checkSignaturePresence},
		{StateDecoded, p.decodePayload},
		{StateFieldsValidated, p.checkSignatureAndFields},
	}
}

func (p *Pipeline) checkRate(ctx context.Context, r *run) *rejection {
	allowed, err := p.limiter.Allow(ctx, r.client.IP, p.policy)
	if err != nil {
		// Backend failure is a system fault, not a client fault.
		p.logger.Error("rate limiter backend failed", "error", err)
		return &rejection{
			kind:    audit.KindSystemError,
			status:  http.StatusInternalServerError,
			message: "internal error, please retry later",
			details: "rate limiter backend failure",
		}
	}
	if !allowed {
		return &rejection{
			kind:    audit.KindRateLimitExceeded,
			status:  http.StatusTooManyRequests,
			message: "too many requests, please retry later",
			details: "rate limit exceeded",
		}
	}
	return nil
}

func (p *Pipeline) checkOrigin(_ context.Context, r *run) *rejection {
	if !p.origins.Check(r.client.Origin) {
		return &rejection{
			kind:    audit.KindInvalidOrigin,
			status:  http.StatusForbidden,
			message: "invalid request origin",
			details: "origin not allowed: " + r.client.Origin,
		}
	}
	return nil
}

func (p *Pipeline) checkCSRF(_ context.Context, r *run) *rejection {
	if !guard.CheckCSRFShape(r.env.CSRFToken) {
		return &rejection{
			kind:    audit.KindCSRFTokenInvalid,
			status:  http.StatusForbidden,
			message: "CSRF validation failed",
			details: "malformed csrf token",
		}
	}
	return nil
}

func (p *Pipeline) checkTimestamp(_ context.Context, r *run) *rejection {
	if !p.replay.Check(r.env.Timestamp) {
		return &rejection{
			kind:    audit.KindTimestampInvalid,
			status:  http.StatusForbidden,
			message: "invalid request timestamp",
			details: "timestamp missing, malformed, or outside tolerance: " + r.env.Timestamp,
		}
	}
	return nil
}

func (p *Pipeline) checkSignaturePresence(_ context.Context, r *run) *rejection {
	if r.env.Signature == "" {
		return &rejection{
			kind:    audit.KindSignatureMissing,
			status:  http.StatusForbidden,
			message: "API signature missing",
			details: "signature missing",
		}
	}
	return nil
}

func (p *Pipeline) decodePayload(_ context.Context, r *run) *rejection {
	sub, raw, err := codec.Decode(r.env.Payload)
	if err != nil {
		return &rejection{
			kind:    audit.KindDecodeFailed,
			status:  http.StatusBadRequest,
			message: "payload decode failed",
			details: err.Error(),
		}
	}
	r.submission, r.rawPayload = sub, raw
	return nil
}

// checkSignatureAndFields verifies the envelope signature over the decoded
// payload, deduplicates the nonce when the cache is enabled, then collects
// all field violations.
func (p *Pipeline) checkSignatureAndFields(_ context.Context, r *run) *rejection {
	if !p.verifier.Verify(r.rawPayload, r.env.Signature, r.env.Timestamp, r.env.Nonce) {
		return &rejection{
			kind:    audit.KindSignatureInvalid,
			status:  http.StatusForbidden,
			message: "API signature verification failed",
			details: "signature mismatch",
		}
	}

	// Read-only replay check; the nonce is consumed only once its
	// submission is stored, so a validation failure can be corrected and
	// resubmitted under the same nonce.
	if p.nonces != nil && p.nonces.Seen(r.env.Nonce) {
		return &rejection{
			kind:    audit.KindNonceReplayed,
			status:  http.StatusForbidden,
			message: "request already processed",
			details: "nonce replayed inside tolerance window",
		}
	}

	if errs := p.fields.Validate(r.submission); len(errs) > 0 {
		return &rejection{
			kind:    audit.KindValidationFailed,
			status:  http.StatusBadRequest,
			message: "field validation failed",
			details: fmt.Sprintf("%d field violations", len(errs)),
			errors:  errs,
		}
	}
	return nil
}

func (p *Pipeline) emit(ctx context.Context, event audit.Event) {
	if err := p.sink.Record(ctx, event); err != nil {
		p.logger.Error("audit sink failed", "error", err, "event_type", string(event.Kind))
	}
}

func (p *Pipeline) observe(ctx context.Context, result Result, elapsed time.Duration) {
	if p.observer != nil {
		p.observer.ObserveSubmission(ctx, result.State, result.Reason, elapsed)
	}
}
