package contracts

import "time"

// RequestStatus is the workflow state of an AuthorizationRequest.
type RequestStatus string

const (
	RequestDraft       RequestStatus = "DRAFT"
	RequestUnderReview RequestStatus = "UNDER_REVIEW"
	RequestApproved    RequestStatus = "APPROVED"
	RequestRejected    RequestStatus = "REJECTED"
	RequestConditional RequestStatus = "CONDITIONAL"
)

// Terminal reports whether the request has been finalized.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected || s == RequestConditional
}

// Actor is the authenticated party performing an operation.
type Actor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// AuthorizationRequest is created once from trust evidence. Its status is changed
// only by the workflow.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type AuthorizationRequest struct {
	ID                    string             `json:"id"`
	OrganizationID        string             `json:"organization_id"`
	ApplicationName       string             `json:"application_name"`
	Archetype             string             `json:"archetype"`
	TrustMatrixID         string             `json:"trust_matrix_id"`
	OverallTrustIndex     int                `json:"overall_trust_index"`
	RiskTier              RiskTier           `json:"risk_tier"`
	PassRate              float64            `json:"pass_rate"`
	FailedTests           int                `json:"failed_tests"`
	RecommendedDecision   DeploymentDecision `json:"recommended_decision"`
	PolicyVersion         string             `json:"policy_version,omitempty"`
	RequestedBy           string             `json:"requested_by"`
	RequestedAt           time.Time          `json:"requested_at"`
	DeploymentEnvironment string             `json:"deployment_environment"`
	Status                RequestStatus      `json:"status"`
}

// AuthorizationDecision is the one-shot, immutable outcome of finalize.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type AuthorizationDecision struct {
	ID                   string                `json:"id"`
	RequestID            string                `json:"request_id"`
	Decision             DeploymentDecision    `json:"decision"`
	DecidedAt            time.Time             `json:"decided_at"`
	FinalApprover        string                `json:"final_approver"`
	Approvals            []StakeholderApproval `json:"approvals"`
	Conditions           []DeploymentCondition `json:"conditions"`
	Notes                string                `json:"notes,omitempty"`
	DeploymentAuthorized bool                  `json:"deployment_authorized"`
	ExpiresAt            *time.Time            `json:"expires_at,omitempty"`
}
