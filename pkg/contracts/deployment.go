package contracts

import (
	"fmt"
	"strings"
	"time"
)

// RiskTier is the risk classification supplied with the trust evidence.
type RiskTier string

const (
	RiskLow      RiskTier = "Low"
	RiskMedium   RiskTier = "Medium"
	RiskHigh     RiskTier = "High"
	RiskCritical RiskTier = "Critical"
)

// ParseRiskTier accepts any casing of the four tiers.
func ParseRiskTier(s string) (RiskTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	}
	return "", &ValidationError{Field: "risk_tier", Reason: fmt.Sprintf("unknown risk tier %q", s)}
}

// Elevated reports whether the tier mandates enhanced monitoring.
func (t RiskTier) Elevated() bool {
	return t == RiskHigh || t == RiskCritical
}

// DeploymentDecision is the outcome class of an authorization.
type DeploymentDecision string

const (
	DecisionFullDeployment      DeploymentDecision = "Full Deployment"
	DecisionStagedRollout       DeploymentDecision = "Staged Rollout"
	DecisionPilotProgram        DeploymentDecision = "Pilot Program"
	DecisionConditionalApproval DeploymentDecision = "Conditional Approval"
	DecisionDeploymentBlocked   DeploymentDecision = "Deployment Blocked"
)

// Valid reports whether d is one of the five known decisions.
func (d DeploymentDecision) Valid() bool {
	switch d {
	case DecisionFullDeployment, DecisionStagedRollout, DecisionPilotProgram,
		DecisionConditionalApproval, DecisionDeploymentBlocked:
		return true
	}
	return false
}

// ConditionCategory groups conditions for reporting.
type ConditionCategory string

const (
	CategoryTesting     ConditionCategory = "testing"
	CategoryMonitoring  ConditionCategory = "monitoring"
	CategoryRemediation ConditionCategory = "remediation"
	CategoryReview      ConditionCategory = "review"
	CategoryCustom      ConditionCategory = "custom"
)

// DeploymentCondition is a prerequisite that must be verified before deployment.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type DeploymentCondition struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Category   ConditionCategory `json:"category"`
	Required   bool              `json:"required"`
	Met        bool              `json:"met"`
	VerifiedBy string            `json:"verified_by,omitempty"`
	VerifiedAt *time.Time        `json:"verified_at,omitempty"`
}

// Clone returns a deep copy.
func (c DeploymentCondition) Clone() DeploymentCondition {
	out := c
	if c.VerifiedAt != nil {
		t := *c.VerifiedAt
		out.VerifiedAt = &t
	}
	return out
}

// CloneConditions deep-copies a slice of conditions.
func CloneConditions(in []DeploymentCondition) []DeploymentCondition {
	if in == nil {
		return nil
	}
	out := make([]DeploymentCondition, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
