// Package api is the HTTP boundary of the intake service: the submit
// endpoint, health check, the read-only admin listing, and the transport
// middleware in front of them.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thermaworks/intake/pkg/contracts"
)

// Response is the uniform body shape of every endpoint:
// {code, message, [errors|data]}.
type Response struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Errors  []contracts.FieldError `json:"errors,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
}

// WriteResponse writes the uniform envelope with the given status.
func WriteResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteMessage writes a bare {code, message} response.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteResponse(w, status, Response{Code: status, Message: message})
}

// WriteBadRequest writes a 400 response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusBadRequest, message)
}

// WriteForbidden writes a 403 response.
func WriteForbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "forbidden"
	}
	WriteMessage(w, http.StatusForbidden, message)
}

// WriteUnauthorized writes a 401 response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	WriteMessage(w, http.StatusUnauthorized, message)
}

// WriteMethodNotAllowed writes a 405 response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}

// WriteTooManyRequests writes a 429 response with a Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteMessage(w, http.StatusTooManyRequests, "too many requests, please retry later")
}

// WriteInternal writes a 500 response. The err is logged but NEVER exposed
// to the client.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteMessage(w, http.StatusInternalServerError, "an unexpected error occurred, please try again later")
}
