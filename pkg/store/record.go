// Package store persists authorization request aggregates.
//
// A Record bundles everything that must change atomically under the request
// lock: the request, approvals, conditions, the optional decision and
// certificate, and the audit chain. Version drives optimistic concurrency.
package store

import (
	"errors"
	"slices"
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

var (
	// ErrConflict is returned by Save when the stored version moved on.
	ErrConflict = errors.New("store: version conflict")
	// ErrExists is returned by Create for a duplicate id.
	ErrExists = errors.New("store: record already exists")
)

// Record is the persisted aggregate of one authorization request.
//
//nolint:govet // fieldalignment: field order mirrors the stored document
type Record struct {
	Request     contracts.AuthorizationRequest      `json:"request"`
	Approvals   []contracts.StakeholderApproval     `json:"approvals"`
	Conditions  []contracts.DeploymentCondition     `json:"conditions"`
	Decision    *contracts.AuthorizationDecision    `json:"decision,omitempty"`
	Certificate *contracts.AuthorizationCertificate `json:"certificate,omitempty"`
	Audit       audit.Chain                         `json:"audit_log"`
	Version     int64                               `json:"version"`
	UpdatedAt   time.Time                           `json:"updated_at"`
}

// ID returns the request id.
func (r *Record) ID() string { return r.Request.ID }

// Finalized reports whether a decision exists.
func (r *Record) Finalized() bool { return r.Decision != nil }

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := &Record{
		Request:    r.Request,
		Approvals:  contracts.CloneApprovals(r.Approvals),
		Conditions: contracts.CloneConditions(r.Conditions),
		Audit:      *audit.FromEntries(r.Audit.Entries()),
		Version:    r.Version,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Decision != nil {
		d := *r.Decision
		d.Approvals = contracts.CloneApprovals(r.Decision.Approvals)
		d.Conditions = contracts.CloneConditions(r.Decision.Conditions)
		if r.Decision.ExpiresAt != nil {
			t := *r.Decision.ExpiresAt
			d.ExpiresAt = &t
		}
		out.Decision = &d
	}
	if r.Certificate != nil {
		c := *r.Certificate
		c.Stakeholders = slices.Clone(r.Certificate.Stakeholders)
		for i, s := range c.Stakeholders {
			if s.SignedAt != nil {
				t := *s.SignedAt
				c.Stakeholders[i].SignedAt = &t
			}
		}
		c.Conditions = slices.Clone(r.Certificate.Conditions)
		if r.Certificate.ValidUntil != nil {
			t := *r.Certificate.ValidUntil
			c.ValidUntil = &t
		}
		out.Certificate = &c
	}
	return out
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	OrganizationID string
	Status         contracts.RequestStatus
	Limit          int
}

func (f ListFilter) matches(r *Record) bool {
	if f.OrganizationID != "" && r.Request.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Status != "" && r.Request.Status != f.Status {
		return false
	}
	return true
}
