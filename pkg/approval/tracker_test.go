package approval_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

var at = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func stakeholders() []contracts.Stakeholder {
	return []contracts.Stakeholder{
		{Role: contracts.RoleAIProductOwner, Name: "Priya", Required: true},
		{Role: contracts.RoleAIRiskOfficer, Name: "Tomas", Required: true},
		{Role: contracts.RoleComplianceOfficer, Name: "Wen", Required: true},
		{Role: contracts.RoleBusinessOwner, Name: "Ola", Required: false},
	}
}

func newTracker() *approval.Tracker {
	return approval.NewTracker(nil).WithClock(func() time.Time { return at })
}

func TestInitialize_PendingAndOrdered(t *testing.T) {
	approvals := approval.Initialize(stakeholders())
	require.Len(t, approvals, 4)
	for i, a := range approvals {
		assert.Equal(t, contracts.ApprovalPending, a.Status)
		assert.Equal(t, stakeholders()[i].Role, a.Stakeholder.Role)
		assert.Nil(t, a.DecidedAt)
	}
	assert.Equal(t, 2, approval.IndexOf(approvals, contracts.RoleComplianceOfficer))
	assert.Equal(t, -1, approval.IndexOf(approvals, contracts.RoleLegalCounsel))
}

func TestApprove_SetsSignatureAndTimestamp(t *testing.T) {
	approvals := approval.Initialize(stakeholders())
	tr := newTracker()

	require.NoError(t, tr.Approve(&approvals[0], "Priya", "looks good", []string{"weekly review"}))
	a := approvals[0]
	assert.Equal(t, contracts.ApprovalApproved, a.Status)
	require.NotNil(t, a.DecidedAt)
	assert.Equal(t, at, *a.DecidedAt)
	assert.Equal(t, "Priya", a.DecidedBy)
	assert.True(t, strings.HasPrefix(a.Signature, "sha256:"))
	assert.True(t, approval.DigestSigner{}.Verify("Priya", at, a.Signature))
	assert.Equal(t, []string{"weekly review"}, a.Conditions)
}

func TestTransitions_AreOneShot(t *testing.T) {
	tr := newTracker()
	approvals := approval.Initialize(stakeholders())

	require.NoError(t, tr.Approve(&approvals[0], "Priya", "", nil))
	assert.ErrorIs(t, tr.Approve(&approvals[0], "Priya", "", nil), contracts.ErrInvalidTransition)
	assert.ErrorIs(t, tr.Reject(&approvals[0], "Priya", "changed mind"), contracts.ErrInvalidTransition)

	require.NoError(t, tr.Reject(&approvals[1], "Tomas", "bias findings open"))
	assert.ErrorIs(t, tr.Approve(&approvals[1], "Tomas", "", nil), contracts.ErrInvalidTransition)

	require.NoError(t, tr.Recuse(&approvals[3], "Ola", "conflict of interest"))
	assert.ErrorIs(t, tr.Recuse(&approvals[3], "Ola", "again"), contracts.ErrInvalidTransition)
	assert.Equal(t, contracts.ApprovalRecused, approvals[3].Status)
}

func TestReject_RequiresReason(t *testing.T) {
	tr := newTracker()
	approvals := approval.Initialize(stakeholders())

	err := tr.Reject(&approvals[0], "Priya", "   ")
	assert.ErrorIs(t, err, contracts.ErrValidation)
	assert.Equal(t, contracts.ApprovalPending, approvals[0].Status)

	assert.ErrorIs(t, tr.Recuse(&approvals[0], "Priya", ""), contracts.ErrValidation)
	assert.ErrorIs(t, tr.Approve(&approvals[0], "", "", nil), contracts.ErrValidation)
	assert.ErrorIs(t, tr.Approve(nil, "Priya", "", nil), contracts.ErrValidation)
}

func TestComputeProgress(t *testing.T) {
	tr := newTracker()
	approvals := approval.Initialize(stakeholders())

	p := approval.ComputeProgress(approvals)
	assert.Equal(t, approval.Progress{Total: 4, Required: 3, Pending: 4}, p)

	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Approve(&approvals[i], approvals[i].Stakeholder.Name, "", nil))
	}
	p = approval.ComputeProgress(approvals)
	assert.Equal(t, 3, p.RequiredApproved)
	assert.Equal(t, 1, p.Pending)
	assert.True(t, p.CanProceed, "optional stakeholder pending must not block")

	require.NoError(t, tr.Reject(&approvals[3], "Ola", "not convinced"))
	p = approval.ComputeProgress(approvals)
	assert.Equal(t, 1, p.Rejected)
	assert.Equal(t, 0, p.RequiredRejected)
	assert.True(t, p.CanProceed, "optional rejection is advisory")
}

func TestComputeProgress_RequiredRejectionBlocks(t *testing.T) {
	tr := newTracker()
	approvals := approval.Initialize(stakeholders())
	require.NoError(t, tr.Approve(&approvals[0], "Priya", "", nil))
	require.NoError(t, tr.Approve(&approvals[2], "Wen", "", nil))
	require.NoError(t, tr.Reject(&approvals[1], "Tomas", "no"))

	p := approval.ComputeProgress(approvals)
	assert.Equal(t, 1, p.RequiredRejected)
	assert.False(t, p.CanProceed)
}

func TestComputeProgress_RequiredRecusalBlocks(t *testing.T) {
	tr := newTracker()
	approvals := approval.Initialize(stakeholders())
	require.NoError(t, tr.Approve(&approvals[0], "Priya", "", nil))
	require.NoError(t, tr.Approve(&approvals[2], "Wen", "", nil))
	require.NoError(t, tr.Recuse(&approvals[1], "Tomas", "conflict"))

	p := approval.ComputeProgress(approvals)
	assert.Equal(t, 1, p.Recused)
	assert.False(t, p.CanProceed)
}

func TestComputeProgress_NoRequiredStakeholders(t *testing.T) {
	p := approval.ComputeProgress(nil)
	assert.True(t, p.CanProceed)
	assert.Zero(t, p.Total)
}

func TestSigners(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ed, err := approval.NewEd25519Signer(priv, "org-key-1")
	require.NoError(t, err)

	keyed, err := approval.NewKeyedSigner([]byte(strings.Repeat("k", 32)), "org-1")
	require.NoError(t, err)

	for name, s := range map[string]approval.Signer{
		"digest":  approval.DigestSigner{},
		"ed25519": ed,
		"keyed":   keyed,
	} {
		t.Run(name, func(t *testing.T) {
			sig, err := s.Sign("Priya", at)
			require.NoError(t, err)
			assert.True(t, s.Verify("Priya", at, sig))
			assert.False(t, s.Verify("Mallory", at, sig))
			assert.False(t, s.Verify("Priya", at.Add(time.Nanosecond), sig))
		})
	}

	sig, err := ed.Sign("Priya", at)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "ed25519:org-key-1:"))
	assert.True(t, approval.VerifyEd25519(ed.PublicKey(), "Priya", at, sig))
}

func TestSigningPayload_NormalizesActor(t *testing.T) {
	composed := "Ren\u00e9"
	decomposed := "Rene\u0301"
	assert.Equal(t, approval.SigningPayload(composed, at), approval.SigningPayload(decomposed, at))
}

func TestKeyedSigner_PerOrganizationKeys(t *testing.T) {
	master := []byte(strings.Repeat("m", 32))
	a, err := approval.NewKeyedSigner(master, "org-a")
	require.NoError(t, err)
	b, err := approval.NewKeyedSigner(master, "org-b")
	require.NoError(t, err)

	sig, err := a.Sign("Priya", at)
	require.NoError(t, err)
	assert.False(t, b.Verify("Priya", at, sig))

	_, err = approval.NewKeyedSigner([]byte("short"), "org-a")
	assert.Error(t, err)
	_, err = approval.NewKeyedSigner(master, "")
	assert.Error(t, err)
}

func TestSignerFactories(t *testing.T) {
	master := []byte(strings.Repeat("m", 32))
	signers, err := approval.KeyedSigners(master)
	require.NoError(t, err)

	a1, err := signers("org-a")
	require.NoError(t, err)
	a2, err := signers("org-a")
	require.NoError(t, err)
	assert.Same(t, a1, a2, "derived signers are cached")

	want, err := approval.NewKeyedSigner(master, "org-a")
	require.NoError(t, err)
	sig, err := a1.Sign("Priya", at)
	require.NoError(t, err)
	assert.True(t, want.Verify("Priya", at, sig))

	_, err = signers("")
	assert.Error(t, err)
	_, err = approval.KeyedSigners([]byte("short"))
	assert.Error(t, err)

	static, err := approval.StaticSigners(nil)("any")
	require.NoError(t, err)
	assert.IsType(t, approval.DigestSigner{}, static)
}
