// Package api holds the HTTP plumbing shared by the authorization API: RFC 7807
// problem responses, rate limiting and idempotent replay.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All API error responses must use this format.
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference identifying the specific occurrence.
	Instance string `json:"instance,omitempty"`
	// TraceID links to the distributed trace for this request.
	TraceID string `json:"trace_id,omitempty"`
	// BlockingReasons is set when finalization was refused.
	BlockingReasons []string `json:"blocking_reasons,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func problemType(status int) string {
	return fmt.Sprintf("urn:helm-authz:problem:%d", status)
}

func writeProblem(w http.ResponseWriter, problem *ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &ProblemDetail{
		Type:   problemType(status),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// WriteErrorR writes an RFC 7807 response enriched with request context
// (trace_id from X-Request-ID, instance from request URI).
func WriteErrorR(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	writeProblem(w, &ProblemDetail{
		Type:     problemType(status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  w.Header().Get("X-Request-ID"),
	})
}

// WriteBadRequest writes a 400 problem.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteUnauthorized writes a 401 problem.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	WriteError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// WriteNotFound writes a 404 problem. Requests owned by another organization
// are reported this way too.
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

// WriteTooManyRequests writes a 429 problem with Retry-After in seconds.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded")
}

// WriteInternal logs err and writes a 500 problem without its text.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
}

// WriteDomainError maps a workflow error onto its problem response.
// Unclassified errors are reported as 500 without detail.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	problem := &ProblemDetail{
		Instance: r.URL.Path,
		TraceID:  w.Header().Get("X-Request-ID"),
		Detail:   publicDetail(err),
	}

	var blocked *contracts.FinalizationBlockedError
	switch {
	case errors.As(err, &blocked):
		problem.Status, problem.Title = http.StatusConflict, "Finalization Blocked"
		problem.BlockingReasons = blocked.Reasons
	case errors.Is(err, contracts.ErrValidation):
		problem.Status, problem.Title = http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, contracts.ErrNotFound):
		problem.Status, problem.Title = http.StatusNotFound, "Not Found"
	case errors.Is(err, contracts.ErrForbidden):
		problem.Status, problem.Title = http.StatusForbidden, "Forbidden"
	case errors.Is(err, contracts.ErrInvalidTransition):
		problem.Status, problem.Title = http.StatusConflict, "Invalid Transition"
	case errors.Is(err, contracts.ErrAlreadyFinalized):
		problem.Status, problem.Title = http.StatusConflict, "Already Finalized"
	case errors.Is(err, contracts.ErrPrecondition):
		problem.Status, problem.Title = http.StatusUnprocessableEntity, "Precondition Failed"
	case errors.Is(err, contracts.ErrIntegrity):
		slog.ErrorContext(r.Context(), "audit integrity violation", "path", r.URL.Path, "error", err)
		problem.Status, problem.Title = http.StatusInternalServerError, "Audit Integrity Violation"
	case errors.Is(err, context.DeadlineExceeded):
		problem.Status, problem.Title = http.StatusGatewayTimeout, "Timeout"
		problem.Detail = ""
	default:
		WriteInternal(w, err)
		return
	}
	problem.Type = problemType(problem.Status)
	writeProblem(w, problem)
}

// publicDetail strips the package prefixes added while wrapping.
func publicDetail(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"workflow: ", "artifacts: "} {
		msg = strings.ReplaceAll(msg, prefix, "")
	}
	return msg
}
