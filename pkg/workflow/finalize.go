package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/artifacts"
	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/certification"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/gate"
	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
	"github.com/kalamgit143/validAIte-sub004/pkg/store"
)

// Finalize records the one-shot deployment decision for requestID. An empty
// decision selects the recommended one; a decision above the recommendation
// needs notes. The gate and the "no decision yet"
// check run under the request lock together with the write.
func (s *Service) Finalize(ctx context.Context, requestID string, decision contracts.DeploymentDecision, approver contracts.Actor, notes string) (_ *contracts.AuthorizationDecision, err error) {
	ctx, done := s.track(ctx, "finalize", requestID, approver)
	defer done(&err)

	if err := requireActor(approver); err != nil {
		return nil, err
	}
	if decision != "" && policy.Rank(decision) < 0 {
		return nil, &contracts.ValidationError{Field: "decision", Reason: "unknown deployment decision " + string(decision)}
	}

	var (
		out     contracts.AuthorizationDecision
		certRef string
		issued  *contracts.AuthorizationCertificate
	)
	rec, err := s.mutate(ctx, requestID, func(rec *store.Record) error {
		if !mayFinalize(rec, approver) {
			return &contracts.ForbiddenError{Actor: approver.Name, Role: approver.Role, Action: "finalize " + requestID}
		}
		if rec.Decision != nil {
			return &contracts.AlreadyFinalizedError{RequestID: requestID, DecisionID: rec.Decision.ID}
		}
		if rec.Request.Status.Terminal() {
			return &contracts.InvalidTransitionError{Entity: "request " + requestID, From: string(rec.Request.Status), To: "finalized"}
		}
		verdict := gate.Evaluate(rec.Approvals, rec.Conditions)
		if !verdict.CanFinalize {
			return &contracts.FinalizationBlockedError{RequestID: requestID, Reasons: verdict.Reasons}
		}

		chosen := decision
		if chosen == "" {
			chosen = rec.Request.RecommendedDecision
		}
		raised := policy.Rank(chosen) > policy.Rank(rec.Request.RecommendedDecision)
		if raised && strings.TrimSpace(notes) == "" {
			return &contracts.ValidationError{Field: "notes", Reason: fmt.Sprintf(
				"%q exceeds the recommended %q and requires notes", chosen, rec.Request.RecommendedDecision)}
		}
		authorized := chosen != contracts.DecisionDeploymentBlocked && verdict.Progress.CanProceed

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("workflow: id generation failed: %w", err)
		}
		decidedAt := s.now()
		dec := &contracts.AuthorizationDecision{
			ID:                   id.String(),
			RequestID:            requestID,
			Decision:             chosen,
			DecidedAt:            decidedAt,
			FinalApprover:        approver.Name,
			Approvals:            contracts.CloneApprovals(rec.Approvals),
			Conditions:           contracts.CloneConditions(rec.Conditions),
			Notes:                notes,
			DeploymentAuthorized: authorized,
		}
		if authorized {
			dec.ExpiresAt = policy.DecisionExpiry(chosen, decidedAt)
		}

		switch {
		case authorized:
			rec.Request.Status = contracts.RequestApproved
		case chosen == contracts.DecisionDeploymentBlocked:
			rec.Request.Status = contracts.RequestRejected
		default:
			rec.Request.Status = contracts.RequestConditional
		}
		rec.Decision = dec

		details := map[string]any{
			"decision_id":           dec.ID,
			"decision":              string(chosen),
			"recommended_decision":  string(rec.Request.RecommendedDecision),
			"deployment_authorized": authorized,
			"status":                string(rec.Request.Status),
		}
		if chosen != rec.Request.RecommendedDecision {
			details["override"] = true
			details["override_raised"] = raised
		}
		if notes != "" {
			details["notes"] = notes
		}
		if _, err := rec.Audit.Append(audit.ActionDecisionFinalized, approver.Name, approver.Role, details); err != nil {
			return err
		}

		if !authorized {
			return nil
		}
		cert, err := certification.Issue(&rec.Request, dec, approver.Name)
		if err != nil {
			return fmt.Errorf("workflow: issue certificate: %w", err)
		}
		certDetails := map[string]any{
			"certificate_id":   cert.CertificateID,
			"certificate_hash": cert.CertificateHash,
		}
		if s.archive != nil {
			ref, err := artifacts.CertificateRef(cert)
			if err != nil {
				return fmt.Errorf("workflow: archive certificate: %w", err)
			}
			certRef = ref
			certDetails["archive_ref"] = ref
		}
		rec.Certificate = cert
		issued = cert
		_, err = rec.Audit.Append(audit.ActionCertificateIssued, approver.Name, approver.Role, certDetails)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Archived only once the decision is stored. The record keeps the
	// certificate, so a failed put can be repeated from it.
	if s.archive != nil && issued != nil {
		if _, err := s.archive.PutCertificate(ctx, issued); err != nil {
			s.logger.ErrorContext(ctx, "certificate archive failed",
				"request_id", requestID, "certificate_ref", certRef, "error", err)
		}
	}

	out = *rec.Clone().Decision
	s.obs.RecordDecision(ctx, out.Decision, out.DeploymentAuthorized)
	s.logger.InfoContext(ctx, "authorization decision finalized",
		"request_id", requestID,
		"decision_id", out.ID,
		"decision", out.Decision,
		"authorized", out.DeploymentAuthorized,
		"certificate_ref", certRef,
	)
	return &out, nil
}

// mayFinalize admits admins and required stakeholders of the request.
func mayFinalize(rec *store.Record, actor contracts.Actor) bool {
	if actor.Role == contracts.RoleAdmin {
		return true
	}
	idx := approval.IndexOf(rec.Approvals, contracts.StakeholderRole(actor.Role))
	return idx >= 0 && rec.Approvals[idx].Stakeholder.Required
}
