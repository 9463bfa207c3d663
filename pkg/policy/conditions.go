package policy

import (
	"fmt"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Identifiers of the built-in conditions. They are stable across requests so
// clients can address a condition without listing first.
const (
	CondAdditionalTesting  = "cond-additional-testing"
	CondEnhancedMonitoring = "cond-enhanced-monitoring"
	CondRemediateFailures  = "cond-remediate-failed-tests"
	CondMonitoringBoard    = "cond-monitoring-dashboard"
	CondPostDeployReview   = "cond-post-deployment-review"
)

// AdditionalTestingThreshold is the trust index below which additional testing
// is mandatory.
const AdditionalTestingThreshold = 80

// GenerateConditions returns the built-in, unmet, required conditions for the
// given evidence, in a fixed order.
func GenerateConditions(trustIndex int, riskTier contracts.RiskTier, failedTests int) []contracts.DeploymentCondition {
	var out []contracts.DeploymentCondition
	add := func(id, text string, cat contracts.ConditionCategory) {
		out = append(out, contracts.DeploymentCondition{ID: id, Text: text, Category: cat, Required: true})
	}

	if trustIndex < AdditionalTestingThreshold {
		add(CondAdditionalTesting, "Complete additional testing for sub-threshold metrics", contracts.CategoryTesting)
	}
	if riskTier.Elevated() {
		add(CondEnhancedMonitoring, "Implement enhanced monitoring and alerting", contracts.CategoryMonitoring)
	}
	if failedTests > 0 {
		add(CondRemediateFailures, fmt.Sprintf("Remediate %d failed test cases", failedTests), contracts.CategoryRemediation)
	}
	add(CondMonitoringBoard, "Establish continuous monitoring dashboard", contracts.CategoryMonitoring)
	add(CondPostDeployReview, "Conduct post-deployment review within 30 days", contracts.CategoryReview)
	return out
}

func isBuiltin(id string) bool {
	switch id {
	case CondAdditionalTesting, CondEnhancedMonitoring, CondRemediateFailures, CondMonitoringBoard, CondPostDeployReview:
		return true
	}
	return false
}
