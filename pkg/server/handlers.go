package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kalamgit143/validAIte-sub004/pkg/api"
	"github.com/kalamgit143/validAIte-sub004/pkg/auth"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/evidence"
	"github.com/kalamgit143/validAIte-sub004/pkg/store"
)

const maxListLimit = 200

type createRequestBody struct {
	TrustEvidence json.RawMessage `json:"trust_evidence,omitempty"`
	TrustMatrixID string          `json:"trust_matrix_id,omitempty"`
	Environment   string          `json:"environment,omitempty"`
}

type signOffBody struct {
	Comments   string   `json:"comments,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

type conditionBody struct {
	Met *bool `json:"met"`
}

type finalizeBody struct {
	Decision contracts.DeploymentDecision `json:"decision,omitempty"`
	Notes    string                       `json:"notes,omitempty"`
}

// requestView is the wire form of a stored record.
type requestView struct {
	Request     contracts.AuthorizationRequest      `json:"request"`
	Approvals   []contracts.StakeholderApproval     `json:"approvals"`
	Conditions  []contracts.DeploymentCondition     `json:"conditions"`
	Decision    *contracts.AuthorizationDecision    `json:"decision,omitempty"`
	Certificate *contracts.AuthorizationCertificate `json:"certificate,omitempty"`
	AuditLength int                                 `json:"audit_length"`
	Version     int64                               `json:"version"`
}

func viewOf(rec *store.Record) requestView {
	return requestView{
		Request:     rec.Request,
		Approvals:   rec.Approvals,
		Conditions:  rec.Conditions,
		Decision:    rec.Decision,
		Certificate: rec.Certificate,
		AuditLength: rec.Audit.Len(),
		Version:     rec.Version,
	}
}

// scoped loads the path's request and hides it from other organizations.
func (s *Server) scoped(w http.ResponseWriter, r *http.Request) (auth.Principal, *store.Record, bool) {
	p, err := auth.GetPrincipal(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return nil, nil, false
	}
	id := r.PathValue("id")
	rec, err := s.wf.Get(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return nil, nil, false
	}
	if rec.Request.OrganizationID != p.GetOrganizationID() {
		api.WriteNotFound(w, "authorization request "+id+" not found")
		return nil, nil, false
	}
	return p, rec, true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := auth.GetPrincipal(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	var body createRequestBody
	if !decode(w, r, &body) {
		return
	}

	var req *contracts.AuthorizationRequest
	switch {
	case len(body.TrustEvidence) > 0 && body.TrustMatrixID != "":
		api.WriteBadRequest(w, "provide either trust_evidence or trust_matrix_id, not both")
		return
	case len(body.TrustEvidence) > 0:
		ev, perr := evidence.Parse(body.TrustEvidence)
		if perr != nil {
			api.WriteDomainError(w, r, perr)
			return
		}
		req, err = s.wf.CreateRequest(r.Context(), *ev, p.GetOrganizationID(), p.Actor(), body.Environment)
	case body.TrustMatrixID != "":
		req, err = s.wf.CreateFromProvider(r.Context(), body.TrustMatrixID, p.GetOrganizationID(), p.Actor(), body.Environment)
	default:
		api.WriteBadRequest(w, "trust_evidence or trust_matrix_id is required")
		return
	}
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/requests/"+req.ID)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := auth.GetPrincipal(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	filter := store.ListFilter{
		OrganizationID: p.GetOrganizationID(),
		Status:         contracts.RequestStatus(r.URL.Query().Get("status")),
		Limit:          50,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			api.WriteBadRequest(w, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		filter.Limit = n
	}
	recs, err := s.wf.List(r.Context(), filter)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	out := make([]contracts.AuthorizationRequest, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Request)
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out, "count": len(out)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	req, err := s.wf.SubmitForReview(r.Context(), rec.Request.ID, p.Actor())
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleSignOff(w http.ResponseWriter, r *http.Request) {
	p, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	var body signOffBody
	if !decode(w, r, &body) {
		return
	}
	role := contracts.StakeholderRole(r.PathValue("role"))
	id := rec.Request.ID

	var (
		out *contracts.StakeholderApproval
		err error
	)
	switch r.PathValue("action") {
	case "approve":
		out, err = s.wf.Approve(r.Context(), id, role, p.Actor(), body.Comments, body.Conditions)
	case "reject":
		out, err = s.wf.Reject(r.Context(), id, role, p.Actor(), body.Reason)
	case "recuse":
		out, err = s.wf.Recuse(r.Context(), id, role, p.Actor(), body.Reason)
	default:
		api.WriteNotFound(w, "unknown sign-off action "+r.PathValue("action"))
		return
	}
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCondition(w http.ResponseWriter, r *http.Request) {
	p, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	var body conditionBody
	if !decode(w, r, &body) {
		return
	}
	if body.Met == nil {
		api.WriteBadRequest(w, "met is required")
		return
	}
	cond, err := s.wf.ToggleCondition(r.Context(), rec.Request.ID, r.PathValue("condition"), *body.Met, p.Actor())
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cond)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	progress, err := s.wf.Progress(r.Context(), rec.Request.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleRequestReadiness(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	res, err := s.wf.Readiness(r.Context(), rec.Request.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	p, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	var body finalizeBody
	if !decode(w, r, &body) {
		return
	}
	dec, err := s.wf.Finalize(r.Context(), rec.Request.ID, body.Decision, p.Actor(), body.Notes)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dec)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	dec, err := s.wf.Decision(r.Context(), rec.Request.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dec)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	cert, err := s.wf.Certificate(r.Context(), rec.Request.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cert)
}

func (s *Server) handleCertificateToken(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	token, err := s.wf.CertificateToken(r.Context(), rec.Request.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	trail, err := s.wf.AuditTrail(r.Context(), rec.Request.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

func (s *Server) handleEvidencePack(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := s.scoped(w, r)
	if !ok {
		return
	}
	pack, err := s.wf.EvidencePack(r.Context(), rec.Request.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="evidence-`+rec.Request.ID+`.zip"`)
	w.Header().Set("X-Evidence-Checksum", pack.Checksum)
	if pack.Ref != "" {
		w.Header().Set("X-Archive-Ref", pack.Ref)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pack.Data)
}
