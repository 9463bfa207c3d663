package contracts

import "strings"

// TrustEvidence is the payload supplied by the trust evidence provider.
//
//nolint:govet // fieldalignment: field order mirrors the wire format
type TrustEvidence struct {
	TrustMatrixID     string   `json:"trust_matrix_id"`
	ApplicationName   string   `json:"application_name"`
	Archetype         string   `json:"archetype"`
	OverallTrustIndex int      `json:"overall_trust_index"`
	RiskTier          RiskTier `json:"risk_tier"`
	PassRate          float64  `json:"pass_rate"`
	FailedTests       int      `json:"failed_tests"`
}

// Validate checks ranges and normalizes the risk tier in place.
func (e *TrustEvidence) Validate() error {
	if strings.TrimSpace(e.TrustMatrixID) == "" {
		return &ValidationError{Field: "trust_matrix_id", Reason: "required"}
	}
	if strings.TrimSpace(e.ApplicationName) == "" {
		return &ValidationError{Field: "application_name", Reason: "required"}
	}
	if e.OverallTrustIndex < 0 || e.OverallTrustIndex > 100 {
		return &ValidationError{Field: "overall_trust_index", Reason: "must be within [0,100]"}
	}
	if e.PassRate < 0 || e.PassRate > 100 {
		return &ValidationError{Field: "pass_rate", Reason: "must be within [0,100]"}
	}
	if e.FailedTests < 0 {
		return &ValidationError{Field: "failed_tests", Reason: "must not be negative"}
	}
	tier, err := ParseRiskTier(string(e.RiskTier))
	if err != nil {
		return err
	}
	e.RiskTier = tier
	return nil
}
