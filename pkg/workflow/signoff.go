package workflow

import (
	"context"

	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/store"
)

// Approve records role's approval on requestID.
func (s *Service) Approve(ctx context.Context, requestID string, role contracts.StakeholderRole, actor contracts.Actor, comments string, conditions []string) (*contracts.StakeholderApproval, error) {
	return s.signOff(ctx, "approve", requestID, role, actor, func(tr *approval.Tracker, a *contracts.StakeholderApproval) (string, map[string]any, error) {
		if err := tr.Approve(a, actor.Name, comments, conditions); err != nil {
			return "", nil, err
		}
		details := map[string]any{"role": string(role), "signature": a.Signature}
		if comments != "" {
			details["comments"] = comments
		}
		if len(conditions) > 0 {
			details["conditions"] = conditions
		}
		return audit.ActionStakeholderApproved, details, nil
	})
}

// Reject records role's rejection on requestID. A reason is required.
func (s *Service) Reject(ctx context.Context, requestID string, role contracts.StakeholderRole, actor contracts.Actor, reason string) (*contracts.StakeholderApproval, error) {
	return s.signOff(ctx, "reject", requestID, role, actor, func(tr *approval.Tracker, a *contracts.StakeholderApproval) (string, map[string]any, error) {
		if err := tr.Reject(a, actor.Name, reason); err != nil {
			return "", nil, err
		}
		return audit.ActionStakeholderRejected, map[string]any{"role": string(role), "reason": reason}, nil
	})
}

// Recuse records that role abstains on requestID. A reason is required.
func (s *Service) Recuse(ctx context.Context, requestID string, role contracts.StakeholderRole, actor contracts.Actor, reason string) (*contracts.StakeholderApproval, error) {
	return s.signOff(ctx, "recuse", requestID, role, actor, func(tr *approval.Tracker, a *contracts.StakeholderApproval) (string, map[string]any, error) {
		if err := tr.Recuse(a, actor.Name, reason); err != nil {
			return "", nil, err
		}
		return audit.ActionStakeholderRecused, map[string]any{"role": string(role), "reason": reason}, nil
	})
}

type signOffFunc func(tr *approval.Tracker, a *contracts.StakeholderApproval) (action string, details map[string]any, err error)

func (s *Service) signOff(ctx context.Context, op, requestID string, role contracts.StakeholderRole, actor contracts.Actor, fn signOffFunc) (_ *contracts.StakeholderApproval, err error) {
	ctx, done := s.track(ctx, op, requestID, actor)
	defer done(&err)

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, &contracts.ValidationError{Field: "role", Reason: "unknown stakeholder role " + string(role)}
	}
	if actor.Role != string(role) && actor.Role != contracts.RoleAdmin {
		return nil, &contracts.ForbiddenError{Actor: actor.Name, Role: actor.Role, Action: op + " as " + string(role)}
	}

	var out contracts.StakeholderApproval
	_, err = s.mutate(ctx, requestID, func(rec *store.Record) error {
		if err := ensureOpen(rec, op); err != nil {
			return err
		}
		idx := approval.IndexOf(rec.Approvals, role)
		if idx < 0 {
			return &contracts.ValidationError{Field: "role", Reason: "no stakeholder " + string(role) + " on request " + requestID}
		}
		tr, err := s.trackerFor(rec.Request.OrganizationID)
		if err != nil {
			return err
		}
		a := &rec.Approvals[idx]
		action, details, err := fn(tr, a)
		if err != nil {
			return err
		}
		if rec.Request.Status == contracts.RequestDraft {
			rec.Request.Status = contracts.RequestUnderReview
		}
		if _, err := rec.Audit.Append(action, actor.Name, actor.Role, details); err != nil {
			return err
		}
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "stakeholder sign-off recorded",
		"request_id", requestID, "role", role, "status", out.Status, "actor", out.DecidedBy)
	return &out, nil
}

// ToggleCondition marks conditionID met or unmet. Verifiers, admins and any
// stakeholder role on the request may toggle; finalized requests are frozen.
func (s *Service) ToggleCondition(ctx context.Context, requestID, conditionID string, met bool, verifier contracts.Actor) (_ *contracts.DeploymentCondition, err error) {
	ctx, done := s.track(ctx, "toggle_condition", requestID, verifier)
	defer done(&err)

	if err := requireActor(verifier); err != nil {
		return nil, err
	}
	if conditionID == "" {
		return nil, &contracts.ValidationError{Field: "condition_id", Reason: "required"}
	}

	var out contracts.DeploymentCondition
	_, err = s.mutate(ctx, requestID, func(rec *store.Record) error {
		if rec.Finalized() || rec.Request.Status.Terminal() {
			return &contracts.InvalidTransitionError{
				Entity: "condition " + conditionID,
				From:   "finalized",
				To:     metLabel(met),
			}
		}
		if !mayVerify(rec, verifier) {
			return &contracts.ForbiddenError{Actor: verifier.Name, Role: verifier.Role, Action: "verify conditions on " + requestID}
		}
		idx := -1
		for i := range rec.Conditions {
			if rec.Conditions[i].ID == conditionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &contracts.ValidationError{Field: "condition_id", Reason: "unknown condition " + conditionID}
		}
		c := &rec.Conditions[idx]
		if c.Met == met {
			return &contracts.InvalidTransitionError{Entity: "condition " + conditionID, From: metLabel(c.Met), To: metLabel(met)}
		}

		action := audit.ActionConditionReopened
		c.Met = met
		if met {
			at := s.now()
			c.VerifiedBy = verifier.Name
			c.VerifiedAt = &at
			action = audit.ActionConditionVerified
		} else {
			c.VerifiedBy = ""
			c.VerifiedAt = nil
		}
		if _, err := rec.Audit.Append(action, verifier.Name, verifier.Role, map[string]any{
			"condition_id": c.ID,
			"text":         c.Text,
			"met":          met,
		}); err != nil {
			return err
		}
		out = c.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func mayVerify(rec *store.Record, actor contracts.Actor) bool {
	switch actor.Role {
	case contracts.RoleAdmin, contracts.RoleVerifier:
		return true
	}
	return approval.IndexOf(rec.Approvals, contracts.StakeholderRole(actor.Role)) >= 0
}

func metLabel(met bool) string {
	if met {
		return "met"
	}
	return "unmet"
}
