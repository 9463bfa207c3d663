//go:build property
// +build property

package audit_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
)

// Property: any single-field edit of any entry is detected by Verify.
func TestChainTamperDetection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("edited actor is always detected", prop.ForAll(
		func(actors []string, pick int, forged string) bool {
			if len(actors) == 0 {
				return true
			}
			var c audit.Chain
			for _, a := range actors {
				if _, err := c.Append(audit.ActionConditionVerified, a, "admin", map[string]any{"actor": a}); err != nil {
					return false
				}
			}
			entries := c.Entries()
			i := pick % len(entries)
			if entries[i].Actor == forged {
				return true
			}
			entries[i].Actor = forged
			return audit.Verify(entries) != nil
		},
		gen.SliceOfN(8, gen.AlphaString()),
		gen.IntRange(0, 1000),
		gen.AlphaString(),
	))

	properties.Property("untouched chains always verify", prop.ForAll(
		func(actors []string) bool {
			var c audit.Chain
			for _, a := range actors {
				if _, err := c.Append(audit.ActionStakeholderApproved, a, "ai_product_owner", nil); err != nil {
					return false
				}
			}
			return audit.Verify(c.Entries()) == nil
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
