package contracts

import "time"

// ComplianceAttestation carries per-framework conformance flags and the
// human-readable attestation statement printed on the certificate.
type ComplianceAttestation struct {
	NISTAIRMF bool   `json:"nist_ai_rmf"`
	EUAIAct   bool   `json:"eu_ai_act"`
	ISO42001  bool   `json:"iso_iec_42001"`
	Statement string `json:"statement"`
}

// CertifiedStakeholder is the certificate's view of a sign-off.
type CertifiedStakeholder struct {
	Role      StakeholderRole `json:"role"`
	Name      string          `json:"name"`
	Status    ApprovalStatus  `json:"status"`
	SignedAt  *time.Time      `json:"signed_at,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// CertifiedCondition is the certificate's view of a deployment condition.
type CertifiedCondition struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Required   bool   `json:"required"`
	Met        bool   `json:"met"`
	VerifiedBy string `json:"verified_by,omitempty"`
}

// AuthorizationCertificate is the exported artifact consumed by regulators and
// auditors. CertificateHash covers every other field.
//
//nolint:govet // fieldalignment: field order mirrors the export format
type AuthorizationCertificate struct {
	CertificateID         string                 `json:"certificate_id"`
	RequestID             string                 `json:"request_id"`
	DecisionID            string                 `json:"decision_id"`
	ApplicationName       string                 `json:"application_name"`
	Archetype             string                 `json:"archetype"`
	TrustIndex            int                    `json:"trust_index"`
	RiskTier              RiskTier               `json:"risk_tier"`
	Decision              DeploymentDecision     `json:"decision"`
	IssuedAt              time.Time              `json:"issued_at"`
	IssuedBy              string                 `json:"issued_by"`
	Stakeholders          []CertifiedStakeholder `json:"stakeholders"`
	Conditions            []CertifiedCondition   `json:"conditions"`
	ValidUntil            *time.Time             `json:"valid_until,omitempty"`
	ComplianceAttestation ComplianceAttestation  `json:"compliance_attestation"`
	CertificateHash       string                 `json:"certificate_hash"`
}
