package auth

import "github.com/kalamgit143/validAIte-sub004/pkg/contracts"

// Principal is the authenticated caller of the API.
type Principal interface {
	GetID() string
	GetOrganizationID() string
	GetRole() string
	// Actor is the identity recorded in audit entries and approvals.
	Actor() contracts.Actor
}

// BasePrincipal is a simple implementation of Principal.
type BasePrincipal struct {
	ID             string
	Name           string
	OrganizationID string
	Role           string
}

func (b *BasePrincipal) GetID() string {
	return b.ID
}

func (b *BasePrincipal) GetOrganizationID() string {
	return b.OrganizationID
}

func (b *BasePrincipal) GetRole() string {
	return b.Role
}

// Actor uses the display name when present, else the subject.
func (b *BasePrincipal) Actor() contracts.Actor {
	name := b.Name
	if name == "" {
		name = b.ID
	}
	return contracts.Actor{Name: name, Role: b.Role}
}

// IsAdmin reports whether the principal holds the admin role.
func (b *BasePrincipal) IsAdmin() bool {
	return b.Role == contracts.RoleAdmin
}
