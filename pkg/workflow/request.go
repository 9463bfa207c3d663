package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/directory"
	"github.com/kalamgit143/validAIte-sub004/pkg/observability"
	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
	"github.com/kalamgit143/validAIte-sub004/pkg/store"
)

// DefaultEnvironment is used when a request names no deployment environment.
const DefaultEnvironment = "production"

// CreateRequest opens a Draft request for ev in organizationID. Stakeholders
// come from the directory, conditions from the policy engine.
func (s *Service) CreateRequest(ctx context.Context, ev contracts.TrustEvidence, organizationID string, requestedBy contracts.Actor, environment string) (_ *contracts.AuthorizationRequest, err error) {
	ctx, done := s.track(ctx, "create_request", "", requestedBy)
	defer done(&err)

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(organizationID) == "" {
		return nil, &contracts.ValidationError{Field: "organization_id", Reason: "required"}
	}
	if err := requireActor(requestedBy); err != nil {
		return nil, err
	}
	if environment == "" {
		environment = DefaultEnvironment
	}

	stakeholders, err := s.directory.Stakeholders(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("workflow: stakeholders for %s: %w", organizationID, err)
	}
	if err := directory.Validate(stakeholders); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("workflow: id generation failed: %w", err)
	}
	now := s.now()
	req := contracts.AuthorizationRequest{
		ID:                    id.String(),
		OrganizationID:        organizationID,
		ApplicationName:       ev.ApplicationName,
		Archetype:             ev.Archetype,
		TrustMatrixID:         ev.TrustMatrixID,
		OverallTrustIndex:     ev.OverallTrustIndex,
		RiskTier:              ev.RiskTier,
		PassRate:              ev.PassRate,
		FailedTests:           ev.FailedTests,
		PolicyVersion:         s.engine.Version(),
		RequestedBy:           requestedBy.Name,
		RequestedAt:           now,
		DeploymentEnvironment: environment,
		Status:                contracts.RequestDraft,
	}
	facts := policy.FactsFromRequest(&req)
	req.RecommendedDecision = s.engine.Recommend(facts)

	conditions, err := s.engine.Conditions(ctx, facts)
	if err != nil {
		return nil, fmt.Errorf("workflow: conditions: %w", err)
	}

	rec := &store.Record{
		Request:    req,
		Approvals:  approval.Initialize(stakeholders),
		Conditions: conditions,
		UpdatedAt:  now,
	}
	rec.Audit.SetClock(s.clock)
	if _, err := rec.Audit.Append(audit.ActionRequestCreated, requestedBy.Name, requestedBy.Role, map[string]any{
		"application_name":     req.ApplicationName,
		"trust_matrix_id":      req.TrustMatrixID,
		"trust_index":          req.OverallTrustIndex,
		"risk_tier":            string(req.RiskTier),
		"recommended_decision": string(req.RecommendedDecision),
		"environment":          environment,
		"policy_version":       req.PolicyVersion,
		"stakeholders":         len(rec.Approvals),
		"conditions":           len(rec.Conditions),
	}); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("workflow: create %s: %w", req.ID, err)
	}
	s.emit(ctx, req.ID, rec.Audit.Entries())

	s.logger.InfoContext(ctx, "authorization request created",
		"request_id", req.ID,
		"organization_id", organizationID,
		"application", req.ApplicationName,
		"recommended", req.RecommendedDecision,
	)
	s.obs.RecordRequest(ctx, observability.AttrOperation.String("workflow.request_created"),
		observability.AttrOrgID.String(organizationID))
	return &req, nil
}

// CreateFromProvider fetches evidence for trustMatrixID and creates a request.
func (s *Service) CreateFromProvider(ctx context.Context, trustMatrixID, organizationID string, requestedBy contracts.Actor, environment string) (*contracts.AuthorizationRequest, error) {
	if s.evidence == nil {
		return nil, &contracts.PreconditionError{Reason: "no trust evidence provider configured"}
	}
	if trustMatrixID == "" {
		return nil, &contracts.ValidationError{Field: "trust_matrix_id", Reason: "required"}
	}
	ev, err := s.evidence.Fetch(ctx, trustMatrixID)
	if err != nil {
		return nil, fmt.Errorf("workflow: fetch evidence %s: %w", trustMatrixID, err)
	}
	return s.CreateRequest(ctx, *ev, organizationID, requestedBy, environment)
}

// SubmitForReview moves a Draft request to UnderReview.
func (s *Service) SubmitForReview(ctx context.Context, requestID string, actor contracts.Actor) (_ *contracts.AuthorizationRequest, err error) {
	ctx, done := s.track(ctx, "submit", requestID, actor)
	defer done(&err)

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	rec, err := s.mutate(ctx, requestID, func(rec *store.Record) error {
		if rec.Request.Status != contracts.RequestDraft {
			return &contracts.InvalidTransitionError{
				Entity: "request " + requestID,
				From:   string(rec.Request.Status),
				To:     string(contracts.RequestUnderReview),
			}
		}
		rec.Request.Status = contracts.RequestUnderReview
		_, err := rec.Audit.Append(audit.ActionSubmittedForReview, actor.Name, actor.Role, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	req := rec.Request
	return &req, nil
}
