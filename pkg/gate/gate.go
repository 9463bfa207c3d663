// Package gate decides whether an authorization request may be finalized.
//
// Finalization requires every required stakeholder to have approved, none to
// have rejected, and every required condition to be met. The gate is the only
// place this rule lives; callers never re-derive it.
package gate

import (
	"fmt"

	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Result is the gate's verdict with its diagnostics.
type Result struct {
	CanFinalize     bool              `json:"can_finalize"`
	Progress        approval.Progress `json:"progress"`
	UnmetConditions int               `json:"unmet_required_conditions"`
	Reasons         []string          `json:"blocking_reasons"`
}

// Evaluate checks approvals and conditions. Reasons is empty iff CanFinalize.
func Evaluate(approvals []contracts.StakeholderApproval, conditions []contracts.DeploymentCondition) Result {
	res := Result{Progress: approval.ComputeProgress(approvals), Reasons: []string{}}

	for _, a := range approvals {
		if !a.Stakeholder.Required {
			continue
		}
		role := a.Stakeholder.Role
		switch a.Status {
		case contracts.ApprovalRejected:
			res.Reasons = append(res.Reasons, fmt.Sprintf("required stakeholder %s (%s) rejected", role, a.Stakeholder.Name))
		case contracts.ApprovalRecused:
			res.Reasons = append(res.Reasons, fmt.Sprintf("required stakeholder %s (%s) recused", role, a.Stakeholder.Name))
		case contracts.ApprovalPending:
			res.Reasons = append(res.Reasons, fmt.Sprintf("awaiting approval from required stakeholder %s (%s)", role, a.Stakeholder.Name))
		}
	}

	for _, c := range conditions {
		if c.Required && !c.Met {
			res.UnmetConditions++
			res.Reasons = append(res.Reasons, fmt.Sprintf("required condition not met: %s", c.Text))
		}
	}

	res.CanFinalize = len(res.Reasons) == 0
	if res.CanFinalize && !res.Progress.CanProceed {
		// Unreachable while the loops above mirror ComputeProgress; kept fail-closed.
		res.CanFinalize = false
		res.Reasons = append(res.Reasons, "stakeholder sign-off incomplete")
	}
	return res
}

// CanFinalize reports whether finalize would pass the gate.
func CanFinalize(approvals []contracts.StakeholderApproval, conditions []contracts.DeploymentCondition) bool {
	return Evaluate(approvals, conditions).CanFinalize
}

// BlockingReasons lists each unmet requirement. Empty when finalize may proceed.
func BlockingReasons(approvals []contracts.StakeholderApproval, conditions []contracts.DeploymentCondition) []string {
	return Evaluate(approvals, conditions).Reasons
}
