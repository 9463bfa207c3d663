//go:build property
// +build property

package policy_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
)

// Property: raising trust index or pass rate never yields a more restrictive decision.
func TestRecommendDecisionMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("monotonic in trust index", prop.ForAll(
		func(trust, delta int, pass float64) bool {
			hi := trust + delta
			if hi > 100 {
				hi = 100
			}
			lo := policy.Rank(policy.RecommendDecision(trust, contracts.RiskMedium, pass))
			return policy.Rank(policy.RecommendDecision(hi, contracts.RiskMedium, pass)) >= lo
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.Property("monotonic in pass rate", prop.ForAll(
		func(trust int, pass, delta float64) bool {
			hi := pass + delta
			if hi > 100 {
				hi = 100
			}
			lo := policy.Rank(policy.RecommendDecision(trust, contracts.RiskHigh, pass))
			return policy.Rank(policy.RecommendDecision(trust, contracts.RiskHigh, hi)) >= lo
		},
		gen.IntRange(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.Property("sub-threshold and elevated-tier conditions are always required", prop.ForAll(
		func(trust, failed int, tierIdx int) bool {
			tiers := []contracts.RiskTier{contracts.RiskLow, contracts.RiskMedium, contracts.RiskHigh, contracts.RiskCritical}
			tier := tiers[tierIdx]
			for _, c := range policy.GenerateConditions(trust, tier, failed) {
				if c.Met || !c.Required {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 50),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
