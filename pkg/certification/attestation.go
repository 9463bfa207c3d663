// Package certification issues the authorization certificate for a finalized,
// authorized decision.
//
// Issuance is pure: the same request and decision always produce a
// byte-identical certificate, so it is safe to retry after a crash.
package certification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalamgit143/validAIte-sub004/pkg/canonicalize"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Minimum trust index per framework for the attestation flag to be set.
const (
	NISTAIRMFThreshold = 70
	EUAIActThreshold   = 75
	ISO42001Threshold  = 80
)

// ErrHashMismatch is returned by Verify when the certificate was altered.
var ErrHashMismatch = errors.New("certification: certificate hash mismatch")

// certificateNamespace seeds the name-based certificate id.
var certificateNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:helm-authz:certificate"))

// CertificateID derives the certificate id from the decision id.
func CertificateID(decisionID string) string {
	return uuid.NewSHA1(certificateNamespace, []byte(decisionID)).String()
}

// Attest evaluates the framework thresholds for trustIndex.
func Attest(applicationName string, trustIndex int, decision contracts.DeploymentDecision) contracts.ComplianceAttestation {
	att := contracts.ComplianceAttestation{
		NISTAIRMF: trustIndex >= NISTAIRMFThreshold,
		EUAIAct:   trustIndex >= EUAIActThreshold,
		ISO42001:  trustIndex >= ISO42001Threshold,
	}

	var met []string
	if att.NISTAIRMF {
		met = append(met, "NIST AI RMF")
	}
	if att.EUAIAct {
		met = append(met, "EU AI Act")
	}
	if att.ISO42001 {
		met = append(met, "ISO/IEC 42001")
	}
	frameworks := "no framework threshold"
	if len(met) > 0 {
		frameworks = strings.Join(met, ", ")
	}
	att.Statement = fmt.Sprintf(
		"%s is authorized for %s with trust index %d. Meets %s.",
		applicationName, decision, trustIndex, frameworks)
	return att
}

// Issue builds the certificate for an authorized decision. issuedBy defaults to
// the decision's final approver.
func Issue(req *contracts.AuthorizationRequest, dec *contracts.AuthorizationDecision, issuedBy string) (*contracts.AuthorizationCertificate, error) {
	if req == nil || dec == nil {
		return nil, &contracts.PreconditionError{Reason: "request and decision are required"}
	}
	if dec.RequestID != req.ID {
		return nil, &contracts.PreconditionError{
			Reason: fmt.Sprintf("decision %s belongs to request %s, not %s", dec.ID, dec.RequestID, req.ID)}
	}
	if !dec.DeploymentAuthorized {
		return nil, &contracts.PreconditionError{Reason: fmt.Sprintf("decision %s does not authorize deployment", dec.ID)}
	}
	if issuedBy == "" {
		issuedBy = dec.FinalApprover
	}

	cert := &contracts.AuthorizationCertificate{
		CertificateID:         CertificateID(dec.ID),
		RequestID:             req.ID,
		DecisionID:            dec.ID,
		ApplicationName:       req.ApplicationName,
		Archetype:             req.Archetype,
		TrustIndex:            req.OverallTrustIndex,
		RiskTier:              req.RiskTier,
		Decision:              dec.Decision,
		IssuedAt:              dec.DecidedAt.UTC(),
		IssuedBy:              issuedBy,
		Stakeholders:          make([]contracts.CertifiedStakeholder, 0, len(dec.Approvals)),
		Conditions:            make([]contracts.CertifiedCondition, 0, len(dec.Conditions)),
		ComplianceAttestation: Attest(req.ApplicationName, req.OverallTrustIndex, dec.Decision),
	}
	if dec.ExpiresAt != nil {
		v := dec.ExpiresAt.UTC()
		cert.ValidUntil = &v
	}
	for _, a := range dec.Approvals {
		cs := contracts.CertifiedStakeholder{
			Role:      a.Stakeholder.Role,
			Name:      a.Stakeholder.Name,
			Status:    a.Status,
			Signature: a.Signature,
		}
		if a.DecidedAt != nil {
			t := a.DecidedAt.UTC()
			cs.SignedAt = &t
		}
		cert.Stakeholders = append(cert.Stakeholders, cs)
	}
	for _, c := range dec.Conditions {
		cert.Conditions = append(cert.Conditions, contracts.CertifiedCondition{
			ID:         c.ID,
			Text:       c.Text,
			Required:   c.Required,
			Met:        c.Met,
			VerifiedBy: c.VerifiedBy,
		})
	}

	hash, err := ComputeHash(cert)
	if err != nil {
		return nil, err
	}
	cert.CertificateHash = hash
	return cert, nil
}

// ComputeHash returns "sha256:<hex>" over the canonical JSON of cert with
// CertificateHash cleared.
func ComputeHash(cert *contracts.AuthorizationCertificate) (string, error) {
	c := *cert
	c.CertificateHash = ""
	h, err := canonicalize.PrefixedHash(c)
	if err != nil {
		return "", fmt.Errorf("certification: failed to hash certificate: %w", err)
	}
	return h, nil
}

// Verify recomputes the certificate hash.
func Verify(cert *contracts.AuthorizationCertificate) error {
	if cert == nil {
		return &contracts.ValidationError{Field: "certificate", Reason: "required"}
	}
	h, err := ComputeHash(cert)
	if err != nil {
		return err
	}
	if h != cert.CertificateHash {
		return fmt.Errorf("%w: computed %s, stored %s", ErrHashMismatch, h, cert.CertificateHash)
	}
	return nil
}

// IssuedWithin reports whether cert is valid at t.
func IssuedWithin(cert *contracts.AuthorizationCertificate, t time.Time) bool {
	if t.Before(cert.IssuedAt) {
		return false
	}
	return cert.ValidUntil == nil || t.Before(*cert.ValidUntil)
}
