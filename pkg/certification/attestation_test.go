package certification_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamgit143/validAIte-sub004/pkg/certification"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
)

func fixture(decidedAt time.Time) (*contracts.AuthorizationRequest, *contracts.AuthorizationDecision) {
	signed := decidedAt.Add(-time.Hour)
	req := &contracts.AuthorizationRequest{
		ID:                "req-1",
		ApplicationName:   "Claims Triage Assistant",
		Archetype:         "decision-support",
		TrustMatrixID:     "tm-42",
		OverallTrustIndex: 78,
		RiskTier:          contracts.RiskMedium,
		PassRate:          85,
		Status:            contracts.RequestApproved,
	}
	dec := &contracts.AuthorizationDecision{
		ID:            "dec-1",
		RequestID:     "req-1",
		Decision:      contracts.DecisionStagedRollout,
		DecidedAt:     decidedAt,
		FinalApprover: "Dana",
		Approvals: []contracts.StakeholderApproval{{
			Stakeholder: contracts.Stakeholder{Role: contracts.RoleAIRiskOfficer, Name: "Tomas", Required: true},
			Status:      contracts.ApprovalApproved,
			DecidedAt:   &signed,
			Signature:   "sha256:abc",
		}},
		Conditions: []contracts.DeploymentCondition{
			{ID: policy.CondAdditionalTesting, Text: "Complete additional testing", Required: true, Met: true, VerifiedBy: "Dana"},
		},
		DeploymentAuthorized: true,
		ExpiresAt:            policy.DecisionExpiry(contracts.DecisionStagedRollout, decidedAt),
	}
	return req, dec
}

var decided = time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)

func TestIssue_Fields(t *testing.T) {
	req, dec := fixture(decided)
	cert, err := certification.Issue(req, dec, "")
	require.NoError(t, err)

	assert.Equal(t, certification.CertificateID("dec-1"), cert.CertificateID)
	assert.Equal(t, decided, cert.IssuedAt)
	assert.Equal(t, "Dana", cert.IssuedBy)
	assert.Equal(t, 78, cert.TrustIndex)
	require.NotNil(t, cert.ValidUntil)
	assert.Equal(t, *dec.ExpiresAt, *cert.ValidUntil)
	require.Len(t, cert.Stakeholders, 1)
	assert.Equal(t, contracts.ApprovalApproved, cert.Stakeholders[0].Status)
	require.Len(t, cert.Conditions, 1)
	assert.True(t, cert.Conditions[0].Met)
	assert.True(t, strings.HasPrefix(cert.CertificateHash, "sha256:"))

	// Scenario A attestation: 78 meets NIST (70) and EU AI Act (75) but not ISO 42001 (80).
	assert.True(t, cert.ComplianceAttestation.NISTAIRMF)
	assert.True(t, cert.ComplianceAttestation.EUAIAct)
	assert.False(t, cert.ComplianceAttestation.ISO42001)
	assert.Contains(t, cert.ComplianceAttestation.Statement, "Staged Rollout")
}

func TestIssue_Idempotent(t *testing.T) {
	req, dec := fixture(decided)
	a, err := certification.Issue(req, dec, "Dana")
	require.NoError(t, err)
	b, err := certification.Issue(req, dec, "Dana")
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
}

func TestIssue_RequiresAuthorizedDecision(t *testing.T) {
	req, dec := fixture(decided)
	dec.DeploymentAuthorized = false
	_, err := certification.Issue(req, dec, "")
	assert.ErrorIs(t, err, contracts.ErrPrecondition)

	req, dec = fixture(decided)
	dec.RequestID = "other"
	_, err = certification.Issue(req, dec, "")
	assert.ErrorIs(t, err, contracts.ErrPrecondition)

	_, err = certification.Issue(nil, dec, "")
	assert.ErrorIs(t, err, contracts.ErrPrecondition)
}

func TestVerify_DetectsAnyFieldChange(t *testing.T) {
	req, dec := fixture(decided)
	mutations := map[string]func(c *contracts.AuthorizationCertificate){
		"trust index": func(c *contracts.AuthorizationCertificate) { c.TrustIndex = 95 },
		"decision":    func(c *contracts.AuthorizationCertificate) { c.Decision = contracts.DecisionFullDeployment },
		"issued by":   func(c *contracts.AuthorizationCertificate) { c.IssuedBy = "Mallory" },
		"issued at":   func(c *contracts.AuthorizationCertificate) { c.IssuedAt = c.IssuedAt.Add(time.Second) },
		"valid until": func(c *contracts.AuthorizationCertificate) { c.ValidUntil = nil },
		"stakeholder": func(c *contracts.AuthorizationCertificate) { c.Stakeholders[0].Name = "Eve" },
		"condition":   func(c *contracts.AuthorizationCertificate) { c.Conditions[0].Met = false },
		"attestation": func(c *contracts.AuthorizationCertificate) { c.ComplianceAttestation.ISO42001 = true },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cert, err := certification.Issue(req, dec, "")
			require.NoError(t, err)
			require.NoError(t, certification.Verify(cert))
			mutate(cert)
			assert.ErrorIs(t, certification.Verify(cert), certification.ErrHashMismatch)
		})
	}
}

func TestVerify_SurvivesJSONRoundTrip(t *testing.T) {
	req, dec := fixture(decided)
	cert, err := certification.Issue(req, dec, "")
	require.NoError(t, err)

	b, err := json.Marshal(cert)
	require.NoError(t, err)
	var decoded contracts.AuthorizationCertificate
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.NoError(t, certification.Verify(&decoded))
}

func TestAttest_Thresholds(t *testing.T) {
	tests := []struct {
		trust         int
		nist, eu, iso bool
	}{
		{69, false, false, false},
		{70, true, false, false},
		{75, true, true, false},
		{80, true, true, true},
	}
	for _, tt := range tests {
		att := certification.Attest("app", tt.trust, contracts.DecisionPilotProgram)
		assert.Equal(t, tt.nist, att.NISTAIRMF, "trust=%d", tt.trust)
		assert.Equal(t, tt.eu, att.EUAIAct, "trust=%d", tt.trust)
		assert.Equal(t, tt.iso, att.ISO42001, "trust=%d", tt.trust)
	}
	assert.Contains(t, certification.Attest("app", 10, contracts.DecisionPilotProgram).Statement, "no framework threshold")
}

func TestIssuedWithin(t *testing.T) {
	req, dec := fixture(decided)
	cert, err := certification.Issue(req, dec, "")
	require.NoError(t, err)

	assert.False(t, certification.IssuedWithin(cert, decided.Add(-time.Minute)))
	assert.True(t, certification.IssuedWithin(cert, decided.Add(24*time.Hour)))
	assert.False(t, certification.IssuedWithin(cert, decided.AddDate(1, 0, 0)))
}

func TestToken_SignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	req, dec := fixture(time.Now().UTC().Truncate(time.Second))
	cert, err := certification.Issue(req, dec, "")
	require.NoError(t, err)

	tok, err := certification.SignToken(cert, priv, "cert-key-1")
	require.NoError(t, err)

	claims, err := certification.ParseToken(tok, pub)
	require.NoError(t, err)
	assert.Equal(t, cert.CertificateID, claims.ID)
	assert.Equal(t, cert.CertificateHash, claims.CertificateHash)
	assert.NoError(t, certification.VerifyToken(cert, tok, pub))

	other, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = certification.ParseToken(tok, other)
	assert.Error(t, err)

	// A token for one certificate does not vouch for an altered copy.
	cert.IssuedBy = "Mallory"
	assert.Error(t, certification.VerifyToken(cert, tok, pub))
}
