// Package contracts defines the shared data types exchanged between the
// intake pipeline, its gates, and the persistence layer.
package contracts

import "time"

// ClientContext captures the observed client identity for one inbound
// request. It is created once per request and never mutated afterwards.
// Origin and Referer are client-controlled headers and carry no trust.
type ClientContext struct {
	IP         string    `json:"client_ip"`
	UserAgent  string    `json:"user_agent"`
	Origin     string    `json:"origin"`
	Referer    string    `json:"referer"`
	ObservedAt time.Time `json:"observed_at"`
}

// SignedEnvelope is the wire input of POST /api/submit. The payload is an
// opaque base64 blob; the signature covers the canonicalized decoded
// payload, the timestamp text, and the nonce.
type SignedEnvelope struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
	Nonce     string `json:"nonce"`
	CSRFToken string `json:"csrfToken"`
}

// Submission is the decoded form payload. Temperatures are carried as the
// raw text received on the wire so the validator can distinguish
// non-numeric input from numeric-but-out-of-range input.
type Submission struct {
	Email                  string `json:"email"`
	ExchangerType          string `json:"heatExchangerType"`
	Power                  string `json:"power"`
	InletTemp              string `json:"inletTemp"`
	OutletTemp             string `json:"outletTemp"`
	FlowRate               string `json:"flowRate"`
	Pressure               string `json:"pressure"`
	Material               string `json:"material"`
	Application            string `json:"application"`
	AdditionalRequirements string `json:"additionalRequirements"`
}

// StringFields returns pointers to every string-valued field, in a stable
// order. The sanitizer rewrites these in place.
func (s *Submission) StringFields() []*string {
	return []*string{
		&s.Email,
		&s.ExchangerType,
		&s.Power,
		&s.InletTemp,
		&s.OutletTemp,
		&s.FlowRate,
		&s.Pressure,
		&s.Material,
		&s.Application,
		&s.AdditionalRequirements,
	}
}

// SubmissionRecord is a fully gated, sanitized submission ready for
// storage. RequestID is server-assigned and never derived from client
// input. The record is owned by the store once inserted.
type SubmissionRecord struct {
	RequestID   string     `json:"request_id"`
	Submission  Submission `json:"submission"`
	ClientIP    string     `json:"ip_address"`
	UserAgent   string     `json:"user_agent"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Processed   bool       `json:"processed"`
}

// FieldError describes one field-validation violation. Code is stable and
// machine-readable; Message is for humans.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
