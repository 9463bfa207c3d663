// Package directory resolves the ordered stakeholder list of an organization.
package directory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Directory returns the stakeholders who must sign off for an organization,
// in display order.
type Directory interface {
	Stakeholders(ctx context.Context, organizationID string) ([]contracts.Stakeholder, error)
}

// Static is an in-memory directory.
type Static struct {
	mu   sync.RWMutex
	orgs map[string][]contracts.Stakeholder
}

func NewStatic() *Static {
	return &Static{orgs: make(map[string][]contracts.Stakeholder)}
}

// Set validates and replaces the stakeholder list of organizationID.
func (s *Static) Set(organizationID string, stakeholders []contracts.Stakeholder) error {
	if organizationID == "" {
		return &contracts.ValidationError{Field: "organization_id", Reason: "required"}
	}
	if err := Validate(stakeholders); err != nil {
		return fmt.Errorf("organization %s: %w", organizationID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[organizationID] = append([]contracts.Stakeholder(nil), stakeholders...)
	return nil
}

func (s *Static) Stakeholders(ctx context.Context, organizationID string) ([]contracts.Stakeholder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.orgs[organizationID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", organizationID, contracts.ErrNotFound)
	}
	return append([]contracts.Stakeholder(nil), list...), nil
}

// Validate checks roles are known and unique and at least one stakeholder is
// required. Approvals are addressed by role, so a role may appear only once.
func Validate(stakeholders []contracts.Stakeholder) error {
	if len(stakeholders) == 0 {
		return &contracts.ValidationError{Field: "stakeholders", Reason: "at least one stakeholder is required"}
	}
	seen := make(map[contracts.StakeholderRole]bool, len(stakeholders))
	required := 0
	for _, st := range stakeholders {
		if !st.Role.Valid() {
			return &contracts.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown stakeholder role %q", st.Role)}
		}
		if seen[st.Role] {
			return &contracts.ValidationError{Field: "role", Reason: fmt.Sprintf("duplicate stakeholder role %q", st.Role)}
		}
		seen[st.Role] = true
		if st.Name == "" {
			return &contracts.ValidationError{Field: "name", Reason: fmt.Sprintf("stakeholder %s has no name", st.Role)}
		}
		if st.Required {
			required++
		}
	}
	if required == 0 {
		return &contracts.ValidationError{Field: "stakeholders", Reason: "at least one stakeholder must be required"}
	}
	return nil
}

type fileStakeholder struct {
	Role       string `yaml:"role"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Department string `yaml:"department"`
	Required   bool   `yaml:"required"`
}

type fileDirectory struct {
	Organizations map[string][]fileStakeholder `yaml:"organizations"`
}

// LoadFile reads a YAML directory of the form
//
//	organizations:
//	  acme:
//	    - role: ai_risk_officer
//	      name: Tomas Varga
//	      email: tomas@acme.example
//	      department: Risk
//	      required: true
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	return Parse(data)
}

// Parse decodes the YAML format read by LoadFile.
func Parse(data []byte) (*Static, error) {
	var doc fileDirectory
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}
	s := NewStatic()
	for org, entries := range doc.Organizations {
		list := make([]contracts.Stakeholder, 0, len(entries))
		for _, e := range entries {
			list = append(list, contracts.Stakeholder{
				Role:       contracts.StakeholderRole(e.Role),
				Name:       e.Name,
				Contact:    e.Email,
				Department: e.Department,
				Required:   e.Required,
			})
		}
		if err := s.Set(org, list); err != nil {
			return nil, err
		}
	}
	return s, nil
}
