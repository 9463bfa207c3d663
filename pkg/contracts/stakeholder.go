package contracts

import (
	"slices"
	"time"
)

// StakeholderRole identifies the accountable function a stakeholder signs for.
type StakeholderRole string

const (
	RoleAIProductOwner        StakeholderRole = "ai_product_owner"
	RoleAIRiskOfficer         StakeholderRole = "ai_risk_officer"
	RoleComplianceOfficer     StakeholderRole = "compliance_officer"
	RoleSecurityLead          StakeholderRole = "security_lead"
	RoleLegalCounsel          StakeholderRole = "legal_counsel"
	RoleDataProtectionOfficer StakeholderRole = "data_protection_officer"
	RoleExecutiveSponsor      StakeholderRole = "executive_sponsor"
	RoleBusinessOwner         StakeholderRole = "business_owner"
)

// Operator roles that are not stakeholders but may act on a request.
const (
	RoleAdmin    = "admin"
	RoleVerifier = "verifier"
)

// Valid reports whether r is one of the known stakeholder roles.
func (r StakeholderRole) Valid() bool {
	switch r {
	case RoleAIProductOwner, RoleAIRiskOfficer, RoleComplianceOfficer, RoleSecurityLead,
		RoleLegalCounsel, RoleDataProtectionOfficer, RoleExecutiveSponsor, RoleBusinessOwner:
		return true
	}
	return false
}

// Stakeholder is reference data owned by the identity directory.
type Stakeholder struct {
	Role       StakeholderRole `json:"role"`
	Name       string          `json:"name"`
	Contact    string          `json:"contact"`
	Department string          `json:"department,omitempty"`
	Required   bool            `json:"required"`
}

// ApprovalStatus is the lifecycle state of one stakeholder's sign-off.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalRecused  ApprovalStatus = "RECUSED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected || s == ApprovalRecused
}

// StakeholderApproval is the per-request sign-off record of one stakeholder.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type StakeholderApproval struct {
	Stakeholder Stakeholder    `json:"stakeholder"`
	Status      ApprovalStatus `json:"status"`
	DecidedAt   *time.Time     `json:"decision_timestamp,omitempty"`
	DecidedBy   string         `json:"decided_by,omitempty"`
	Signature   string         `json:"signature,omitempty"`
	Comments    string         `json:"comments,omitempty"`
	Conditions  []string       `json:"conditions,omitempty"`
}

// Clone returns a deep copy safe to retain after the source is mutated.
func (a StakeholderApproval) Clone() StakeholderApproval {
	out := a
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		out.DecidedAt = &t
	}
	out.Conditions = slices.Clone(a.Conditions)
	return out
}

// CloneApprovals deep-copies a slice of approvals.
func CloneApprovals(in []StakeholderApproval) []StakeholderApproval {
	if in == nil {
		return nil
	}
	out := make([]StakeholderApproval, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
