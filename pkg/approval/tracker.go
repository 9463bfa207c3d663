// Package approval tracks per-stakeholder sign-off on an authorization request.
//
// Every approval starts Pending and moves exactly once to Approved, Rejected or
// Recused. The tracker mutates the approval in place; the caller owns locking
// and audit.
package approval

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Tracker applies sign-off transitions.
type Tracker struct {
	signer Signer
	clock  func() time.Time
}

// NewTracker creates a tracker. A nil signer selects DigestSigner.
func NewTracker(signer Signer) *Tracker {
	if signer == nil {
		signer = DigestSigner{}
	}
	return &Tracker{signer: signer, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// Signer returns the signer used for new approvals.
func (t *Tracker) Signer() Signer { return t.signer }

// Initialize creates one Pending approval per stakeholder, preserving order.
func Initialize(stakeholders []contracts.Stakeholder) []contracts.StakeholderApproval {
	out := make([]contracts.StakeholderApproval, 0, len(stakeholders))
	for _, s := range stakeholders {
		out = append(out, contracts.StakeholderApproval{
			Stakeholder: s,
			Status:      contracts.ApprovalPending,
		})
	}
	return out
}

// IndexOf returns the position of role's approval, or -1.
func IndexOf(approvals []contracts.StakeholderApproval, role contracts.StakeholderRole) int {
	for i := range approvals {
		if approvals[i].Stakeholder.Role == role {
			return i
		}
	}
	return -1
}

// Approve records an approval with a signature over (actor, timestamp).
func (t *Tracker) Approve(a *contracts.StakeholderApproval, actor, comments string, conditions []string) error {
	if err := t.precheck(a, actor, contracts.ApprovalApproved); err != nil {
		return err
	}
	return t.decide(a, actor, contracts.ApprovalApproved, comments, conditions)
}

// Reject records a rejection. A reason is mandatory.
func (t *Tracker) Reject(a *contracts.StakeholderApproval, actor, reason string) error {
	if err := t.precheck(a, actor, contracts.ApprovalRejected); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return &contracts.ValidationError{Field: "reason", Reason: "rejection requires a reason"}
	}
	return t.decide(a, actor, contracts.ApprovalRejected, reason, nil)
}

// Recuse records that the stakeholder abstains. A reason is mandatory.
func (t *Tracker) Recuse(a *contracts.StakeholderApproval, actor, reason string) error {
	if err := t.precheck(a, actor, contracts.ApprovalRecused); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return &contracts.ValidationError{Field: "reason", Reason: "recusal requires a reason"}
	}
	return t.decide(a, actor, contracts.ApprovalRecused, reason, nil)
}

func (t *Tracker) precheck(a *contracts.StakeholderApproval, actor string, to contracts.ApprovalStatus) error {
	if a == nil {
		return &contracts.ValidationError{Field: "approval", Reason: "required"}
	}
	if a.Status != contracts.ApprovalPending {
		return &contracts.InvalidTransitionError{
			Entity: "approval " + string(a.Stakeholder.Role),
			From:   string(a.Status),
			To:     string(to),
		}
	}
	if strings.TrimSpace(actor) == "" {
		return &contracts.ValidationError{Field: "actor", Reason: "required"}
	}
	return nil
}

func (t *Tracker) decide(a *contracts.StakeholderApproval, actor string, status contracts.ApprovalStatus, comments string, conditions []string) error {
	actor = norm.NFC.String(strings.TrimSpace(actor))
	at := t.clock().UTC()
	sig, err := t.signer.Sign(actor, at)
	if err != nil {
		return err
	}
	a.Status = status
	a.DecidedAt = &at
	a.DecidedBy = actor
	a.Signature = sig
	a.Comments = comments
	if len(conditions) > 0 {
		a.Conditions = append([]string(nil), conditions...)
	}
	return nil
}

// Progress summarizes sign-off state.
type Progress struct {
	Total            int  `json:"total"`
	Required         int  `json:"required"`
	Approved         int  `json:"approved"`
	Rejected         int  `json:"rejected"`
	Pending          int  `json:"pending"`
	Recused          int  `json:"recused"`
	RequiredApproved int  `json:"required_approved"`
	RequiredRejected int  `json:"required_rejected"`
	CanProceed       bool `json:"can_proceed"`
}

// ComputeProgress is pure. CanProceed holds when every required stakeholder has
// approved and none has rejected.
func ComputeProgress(approvals []contracts.StakeholderApproval) Progress {
	p := Progress{Total: len(approvals)}
	for _, a := range approvals {
		if a.Stakeholder.Required {
			p.Required++
		}
		switch a.Status {
		case contracts.ApprovalApproved:
			p.Approved++
			if a.Stakeholder.Required {
				p.RequiredApproved++
			}
		case contracts.ApprovalRejected:
			p.Rejected++
			if a.Stakeholder.Required {
				p.RequiredRejected++
			}
		case contracts.ApprovalRecused:
			p.Recused++
		default:
			p.Pending++
		}
	}
	p.CanProceed = p.RequiredApproved == p.Required && p.RequiredRejected == 0
	return p
}
