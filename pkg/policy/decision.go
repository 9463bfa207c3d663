// Package policy derives a recommended deployment decision and the deployment
// conditions from trust evidence. Everything here is pure; callers log and audit.
package policy

import (
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// threshold rows are evaluated top-down, first match wins.
var thresholds = []struct {
	minTrust    int
	minPassRate float64
	decision    contracts.DeploymentDecision
}{
	{85, 90, contracts.DecisionFullDeployment},
	{75, 80, contracts.DecisionStagedRollout},
	{65, 70, contracts.DecisionPilotProgram},
	{55, 0, contracts.DecisionConditionalApproval},
}

// RecommendDecision maps trust evidence to a deployment decision. riskTier does
// not move the thresholds; it only adds conditions.
func RecommendDecision(trustIndex int, _ contracts.RiskTier, passRate float64) contracts.DeploymentDecision {
	for _, row := range thresholds {
		if trustIndex >= row.minTrust && passRate >= row.minPassRate {
			return row.decision
		}
	}
	return contracts.DecisionDeploymentBlocked
}

// Rank orders decisions from most restrictive (0) to least restrictive (4).
// Unknown decisions rank -1.
func Rank(d contracts.DeploymentDecision) int {
	switch d {
	case contracts.DecisionDeploymentBlocked:
		return 0
	case contracts.DecisionConditionalApproval:
		return 1
	case contracts.DecisionPilotProgram:
		return 2
	case contracts.DecisionStagedRollout:
		return 3
	case contracts.DecisionFullDeployment:
		return 4
	}
	return -1
}

var validity = map[contracts.DeploymentDecision]time.Duration{
	contracts.DecisionFullDeployment:      365 * 24 * time.Hour,
	contracts.DecisionStagedRollout:       180 * 24 * time.Hour,
	contracts.DecisionPilotProgram:        90 * 24 * time.Hour,
	contracts.DecisionConditionalApproval: 30 * 24 * time.Hour,
}

// DecisionExpiry returns when an authorization with decision d lapses, or nil
// when it never grants deployment.
func DecisionExpiry(d contracts.DeploymentDecision, decidedAt time.Time) *time.Time {
	ttl, ok := validity[d]
	if !ok {
		return nil
	}
	exp := decidedAt.UTC().Add(ttl)
	return &exp
}
