package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
)

func TestRecommendDecision_Thresholds(t *testing.T) {
	tests := []struct {
		trust    int
		passRate float64
		want     contracts.DeploymentDecision
	}{
		{92, 95, contracts.DecisionFullDeployment},
		{85, 90, contracts.DecisionFullDeployment},
		{85, 89.9, contracts.DecisionStagedRollout},
		{84, 99, contracts.DecisionStagedRollout},
		{75, 80, contracts.DecisionStagedRollout},
		{75, 79, contracts.DecisionPilotProgram},
		{65, 70, contracts.DecisionPilotProgram},
		{65, 10, contracts.DecisionConditionalApproval},
		{55, 0, contracts.DecisionConditionalApproval},
		{54, 100, contracts.DecisionDeploymentBlocked},
		{0, 0, contracts.DecisionDeploymentBlocked},
	}
	for _, tt := range tests {
		got := policy.RecommendDecision(tt.trust, contracts.RiskLow, tt.passRate)
		assert.Equal(t, tt.want, got, "trust=%d pass=%v", tt.trust, tt.passRate)
	}
}

func TestRecommendDecision_TierDoesNotMoveThresholds(t *testing.T) {
	for _, tier := range []contracts.RiskTier{contracts.RiskLow, contracts.RiskMedium, contracts.RiskHigh, contracts.RiskCritical} {
		assert.Equal(t, contracts.DecisionStagedRollout, policy.RecommendDecision(78, tier, 85))
	}
}

func TestRank_TotalOrder(t *testing.T) {
	order := []contracts.DeploymentDecision{
		contracts.DecisionDeploymentBlocked,
		contracts.DecisionConditionalApproval,
		contracts.DecisionPilotProgram,
		contracts.DecisionStagedRollout,
		contracts.DecisionFullDeployment,
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, policy.Rank(order[i-1]), policy.Rank(order[i]))
	}
	assert.Equal(t, -1, policy.Rank("Ship It"))
}

func ids(conds []contracts.DeploymentCondition) []string {
	out := make([]string, len(conds))
	for i, c := range conds {
		out[i] = c.ID
	}
	return out
}

// Scenario A evidence: trust 78, Medium tier, 0 failed tests.
func TestGenerateConditions_ScenarioA(t *testing.T) {
	conds := policy.GenerateConditions(78, contracts.RiskMedium, 0)
	assert.Equal(t, []string{
		policy.CondAdditionalTesting,
		policy.CondMonitoringBoard,
		policy.CondPostDeployReview,
	}, ids(conds))
	for _, c := range conds {
		assert.True(t, c.Required)
		assert.False(t, c.Met)
	}
}

// Scenario B evidence: trust 92, Critical tier, 3 failed tests.
func TestGenerateConditions_ScenarioB(t *testing.T) {
	conds := policy.GenerateConditions(92, contracts.RiskCritical, 3)
	assert.Equal(t, []string{
		policy.CondEnhancedMonitoring,
		policy.CondRemediateFailures,
		policy.CondMonitoringBoard,
		policy.CondPostDeployReview,
	}, ids(conds))
	assert.Equal(t, "Remediate 3 failed test cases", conds[1].Text)
}

func TestDecisionExpiry(t *testing.T) {
	decided := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	exp := policy.DecisionExpiry(contracts.DecisionFullDeployment, decided)
	require.NotNil(t, exp)
	assert.Equal(t, decided.AddDate(0, 0, 365), *exp)

	exp = policy.DecisionExpiry(contracts.DecisionConditionalApproval, decided)
	require.NotNil(t, exp)
	assert.Equal(t, decided.AddDate(0, 0, 30), *exp)

	assert.Nil(t, policy.DecisionExpiry(contracts.DecisionDeploymentBlocked, decided))
}

func TestEngine_BuiltinOnly(t *testing.T) {
	e, err := policy.NewEngine(nil)
	require.NoError(t, err)
	assert.Equal(t, policy.BuiltinVersion, e.Version())

	f := policy.Facts{TrustIndex: 92, RiskTier: contracts.RiskCritical, PassRate: 96, FailedTests: 3}
	conds, err := e.Conditions(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, policy.GenerateConditions(92, contracts.RiskCritical, 3), conds)
	assert.Equal(t, contracts.DecisionFullDeployment, e.Recommend(f))
}

func TestEngine_OrganizationRules(t *testing.T) {
	e, err := policy.NewEngine(nil)
	require.NoError(t, err)

	require.NoError(t, e.Load(policy.RulePack{
		Version: "1.2.0",
		Rules: []policy.ConditionRule{
			{ID: "cond-prod-red-team", Text: "Complete red-team exercise", Required: true,
				When: `environment == "production" && risk_tier in ["High", "Critical"]`},
			{ID: "cond-chatbot-disclosure", Text: "Publish AI interaction disclosure",
				When: `archetype == "chatbot"`},
		},
	}))
	assert.Equal(t, "1.2.0", e.Version())

	conds, err := e.Conditions(context.Background(), policy.Facts{
		TrustIndex: 90, RiskTier: contracts.RiskHigh, PassRate: 95,
		Archetype: "chatbot", Environment: "production",
	})
	require.NoError(t, err)
	got := ids(conds)
	assert.Contains(t, got, "cond-prod-red-team")
	assert.Contains(t, got, "cond-chatbot-disclosure")
	assert.Contains(t, got, policy.CondEnhancedMonitoring)

	last := conds[len(conds)-1]
	assert.Equal(t, "cond-chatbot-disclosure", last.ID)
	assert.False(t, last.Required)
	assert.Equal(t, contracts.CategoryCustom, last.Category)

	conds, err = e.Conditions(context.Background(), policy.Facts{TrustIndex: 90, RiskTier: contracts.RiskLow, PassRate: 95, Environment: "staging"})
	require.NoError(t, err)
	assert.NotContains(t, ids(conds), "cond-prod-red-team")
}

func TestEngine_LoadRejectsBadPacks(t *testing.T) {
	e, err := policy.NewEngine(nil)
	require.NoError(t, err)

	err = e.Load(policy.RulePack{Version: "not-a-version"})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	err = e.Load(policy.RulePack{Version: "1.1.0", Rules: []policy.ConditionRule{
		{ID: policy.CondAdditionalTesting, Text: "override", When: "true"},
	}})
	assert.ErrorIs(t, err, contracts.ErrValidation, "built-in ids cannot be shadowed")

	err = e.Load(policy.RulePack{Version: "1.1.0", Rules: []policy.ConditionRule{
		{ID: "x", Text: "bad", When: "trust_index +"},
	}})
	assert.Error(t, err)

	err = e.Load(policy.RulePack{Version: "1.1.0", Rules: []policy.ConditionRule{
		{ID: "x", Text: "not bool", When: "trust_index + 1"},
	}})
	assert.Error(t, err)

	assert.Equal(t, policy.BuiltinVersion, e.Version(), "failed loads leave the engine untouched")

	require.NoError(t, e.Load(policy.RulePack{Version: "2.0.0"}))
	err = e.Load(policy.RulePack{Version: "1.9.0"})
	assert.ErrorIs(t, err, contracts.ErrPrecondition)
}
