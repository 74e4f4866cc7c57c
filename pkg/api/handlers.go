package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/contracts"
	"github.com/thermaworks/intake/pkg/pipeline"
	"github.com/thermaworks/intake/pkg/store"
)

// adminListLimit caps the admin listing page size.
const adminListLimit = 100

// Service exposes the intake endpoints over HTTP.
type Service struct {
	pipeline     *pipeline.Pipeline
	requests     store.RequestStore
	sink         audit.Sink
	schema       *jsonschema.Schema
	maxBodyBytes int64
	version      string
}

// NewService creates the HTTP service around a wired pipeline. The sink
// receives an event for requests rejected at the boundary, before the
// pipeline runs; a nil sink disables that.
func NewService(p *pipeline.Pipeline, requests store.RequestStore, sink audit.Sink, maxBodyBytes int64, version string) (*Service, error) {
	schema, err := compileEnvelopeSchema()
	if err != nil {
		return nil, err
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Service{
		pipeline:     p,
		requests:     requests,
		sink:         sink,
		schema:       schema,
		maxBodyBytes: maxBodyBytes,
		version:      version,
	}, nil
}

// HandleSubmit handles POST /api/submit.
func (s *Service) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	client := clientContext(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		s.auditBoundary(r.Context(), client, "request body missing or unreadable")
		WriteBadRequest(w, "request body missing")
		return
	}

	// Pre-check the envelope shape so the pipeline only ever sees a
	// structurally complete envelope. Rejections here are security events
	// like any gate outcome.
	var generic interface{}
	if err := json.Unmarshal(body, &generic); err != nil {
		s.auditBoundary(r.Context(), client, "request body is not valid JSON")
		WriteBadRequest(w, "request body is not valid JSON")
		return
	}
	if err := s.schema.Validate(generic); err != nil {
		s.auditBoundary(r.Context(), client, "envelope missing required members")
		WriteBadRequest(w, "request body missing required members")
		return
	}

	var env contracts.SignedEnvelope
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		s.auditBoundary(r.Context(), client, "envelope members have wrong types")
		WriteBadRequest(w, "request body malformed")
		return
	}

	result := s.pipeline.Submit(r.Context(), env, client)
	resp := Response{
		Code:    result.Status,
		Message: result.Message,
		Errors:  result.Errors,
	}
	if result.State == pipeline.StateAcknowledged {
		resp.Data = map[string]string{
			"request_id":   result.Record.RequestID,
			"submitted_at": result.Record.SubmittedAt.Format(time.RFC3339),
		}
	}
	WriteResponse(w, result.Status, resp)
}

// HandleHealth handles GET /api/health.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "healthy",
		Data: map[string]string{
			"status":    "healthy",
			"version":   s.version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// HandleAdminRequests handles GET /api/admin/requests: a plain paginated
// read of the most recent stored records. Authentication is enforced by
// the admin middleware in front of this handler.
func (s *Service) HandleAdminRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}

	limit := adminListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= adminListLimit {
			limit = n
		}
	}

	records, err := s.requests.ListRecent(r.Context(), limit)
	if err != nil {
		WriteInternal(w, fmt.Errorf("admin listing: %w", err))
		return
	}

	WriteResponse(w, http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    records,
	})
}

// auditBoundary records a pre-pipeline rejection. Exactly one event per
// rejected request, mirroring the pipeline's one-event-per-outcome rule.
func (s *Service) auditBoundary(ctx context.Context, client contracts.ClientContext, details string) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Record(ctx, audit.NewEvent(audit.KindMissingBody, client, details)); err != nil {
		slog.Error("audit sink failed", "error", err, "event_type", string(audit.KindMissingBody))
	}
}

// clientContext snapshots the client identity from the request. Prefers
// X-Forwarded-For (first hop) when the service sits behind a proxy.
func clientContext(r *http.Request) contracts.ClientContext {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = strings.Trim(r.RemoteAddr, "[]")
		}
		ip = host
	}

	return contracts.ClientContext{
		IP:         ip,
		UserAgent:  r.Header.Get("User-Agent"),
		Origin:     r.Header.Get("Origin"),
		Referer:    r.Header.Get("Referer"),
		ObservedAt: time.Now().UTC(),
	}
}
