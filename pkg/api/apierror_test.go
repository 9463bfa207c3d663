package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamgit143/validAIte-sub004/pkg/api"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) api.ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var problem api.ProblemDetail
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, w.Code, problem.Status)
	assert.Equal(t, fmt.Sprintf("urn:helm-authz:problem:%d", w.Code), problem.Type)
	return problem
}

func TestWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		title  string
		detail string
	}{
		{"bad request", func(w http.ResponseWriter) { api.WriteBadRequest(w, "limit must be positive") }, 400, "Bad Request", "limit must be positive"},
		{"unauthorized default", func(w http.ResponseWriter) { api.WriteUnauthorized(w, "") }, 401, "Unauthorized", "Authentication required"},
		{"not found", func(w http.ResponseWriter) { api.WriteNotFound(w, "authorization request r9 not found") }, 404, "Not Found", "authorization request r9 not found"},
		{"too many", func(w http.ResponseWriter) { api.WriteTooManyRequests(w, 30) }, 429, "Too Many Requests", "Rate limit exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			require.Equal(t, tt.status, w.Code)
			problem := decodeProblem(t, w)
			assert.Equal(t, tt.title, problem.Title)
			assert.Equal(t, tt.detail, problem.Detail)
		})
	}
}

func TestWriteTooManyRequests_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteTooManyRequests(w, 30)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestWriteInternal_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteInternal(w, errors.New("pq: connection refused to host=10.0.0.1"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	problem := decodeProblem(t, w)
	assert.NotContains(t, problem.Detail, "10.0.0.1")
}

func TestWriteErrorR_RequestContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/requests/r1/decision", nil)
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req-123")

	api.WriteErrorR(w, req, http.StatusBadRequest, "Bad Request", "bad input")

	problem := decodeProblem(t, w)
	assert.Equal(t, "/v1/requests/r1/decision", problem.Instance)
	assert.Equal(t, "req-123", problem.TraceID)
}

func TestWriteDomainError_Mapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"validation", &contracts.ValidationError{Field: "reason", Reason: "required"}, http.StatusBadRequest, "Validation Failed"},
		{"not found", fmt.Errorf("workflow: load r1: %w", contracts.ErrNotFound), http.StatusNotFound, "Not Found"},
		{"forbidden", &contracts.ForbiddenError{Actor: "eve", Role: "viewer", Action: "approve"}, http.StatusForbidden, "Forbidden"},
		{"transition", &contracts.InvalidTransitionError{Entity: "approval", From: "APPROVED", To: "REJECTED"}, http.StatusConflict, "Invalid Transition"},
		{"already finalized", &contracts.AlreadyFinalizedError{RequestID: "r1", DecisionID: "d1"}, http.StatusConflict, "Already Finalized"},
		{"precondition", &contracts.PreconditionError{Reason: "not authorized"}, http.StatusUnprocessableEntity, "Precondition Failed"},
		{"integrity", &contracts.IntegrityError{Index: 2, Reason: "hash mismatch"}, http.StatusInternalServerError, "Audit Integrity Violation"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "Timeout"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.WriteDomainError(w, httptest.NewRequest(http.MethodPost, "/v1/requests/r1/finalize", nil), tc.err)

			assert.Equal(t, tc.status, w.Code)
			problem := decodeProblem(t, w)
			assert.Equal(t, tc.title, problem.Title)
		})
	}
}

func TestWriteDomainError_BlockingReasons(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("workflow: %w", &contracts.FinalizationBlockedError{
		RequestID: "r1",
		Reasons:   []string{"awaiting approval from required stakeholder legal_counsel (Omar)"},
	})
	api.WriteDomainError(w, httptest.NewRequest(http.MethodPost, "/v1/requests/r1/finalize", nil), err)

	require.Equal(t, http.StatusConflict, w.Code)
	problem := decodeProblem(t, w)
	assert.Equal(t, "Finalization Blocked", problem.Title)
	assert.Len(t, problem.BlockingReasons, 1)
	assert.NotContains(t, problem.Detail, "workflow:")
}
