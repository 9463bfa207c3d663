package evidence_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/evidence"
)

const valid = `{
  "trust_matrix_id": "tm-42",
  "application_name": "Claims Triage Assistant",
  "archetype": "decision-support",
  "overall_trust_index": 78,
  "risk_tier": "medium",
  "pass_rate": 85.5,
  "failed_tests": 0
}`

func TestParse_Valid(t *testing.T) {
	ev, err := evidence.Parse([]byte(valid))
	require.NoError(t, err)
	assert.Equal(t, "tm-42", ev.TrustMatrixID)
	assert.Equal(t, 78, ev.OverallTrustIndex)
	assert.Equal(t, contracts.RiskMedium, ev.RiskTier, "tier is normalized")
	assert.InDelta(t, 85.5, ev.PassRate, 0.0001)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"malformed":         `{"trust_matrix_id":`,
		"not an object":     `[1, 2]`,
		"trailing data":     `{"trust_matrix_id":"tm","application_name":"a","overall_trust_index":50,"risk_tier":"Low","pass_rate":50} {}`,
		"missing field":     `{"trust_matrix_id":"tm","application_name":"a","overall_trust_index":50,"risk_tier":"Low"}`,
		"index too high":    `{"trust_matrix_id":"tm","application_name":"a","overall_trust_index":101,"risk_tier":"Low","pass_rate":50}`,
		"fractional index":  `{"trust_matrix_id":"tm","application_name":"a","overall_trust_index":50.5,"risk_tier":"Low","pass_rate":50}`,
		"negative failures": `{"trust_matrix_id":"tm","application_name":"a","overall_trust_index":50,"risk_tier":"Low","pass_rate":50,"failed_tests":-1}`,
		"unknown tier":      `{"trust_matrix_id":"tm","application_name":"a","overall_trust_index":50,"risk_tier":"Extreme","pass_rate":50}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := evidence.Parse([]byte(payload))
			assert.ErrorIs(t, err, contracts.ErrValidation)
		})
	}
}

func TestStaticProvider(t *testing.T) {
	p := evidence.NewStaticProvider()
	require.NoError(t, p.Put(contracts.TrustEvidence{
		TrustMatrixID: "tm-1", ApplicationName: "app", OverallTrustIndex: 90, RiskTier: "HIGH", PassRate: 95,
	}))

	ev, err := p.Fetch(context.Background(), "tm-1")
	require.NoError(t, err)
	assert.Equal(t, contracts.RiskHigh, ev.RiskTier)

	_, err = p.Fetch(context.Background(), "tm-2")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	assert.ErrorIs(t, p.Put(contracts.TrustEvidence{TrustMatrixID: "x"}), contracts.ErrValidation)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tm-42.json"), []byte(valid), 0o600))
	p := evidence.NewFileProvider(dir)

	ev, err := p.Fetch(context.Background(), "tm-42")
	require.NoError(t, err)
	assert.Equal(t, "Claims Triage Assistant", ev.ApplicationName)

	_, err = p.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	_, err = p.Fetch(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, contracts.ErrValidation)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tm-other.json"), []byte(valid), 0o600))
	_, err = p.Fetch(context.Background(), "tm-other")
	assert.ErrorIs(t, err, contracts.ErrValidation)
}
