package identity

import (
	"context"

	"github.com/google/uuid"
)

// Role is the verified role supplied by the identity provider
type Role string

const (
	RoleMember Role = "member"
	RoleRep    Role = "rep"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleRep, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller. Reps carry the delivery branch they are bound to,
// members carry their member number.
type Principal struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	BranchID *uint     `json:"branch_id,omitempty"`
	MemberNo string    `json:"member_no,omitempty"`
}

func (p Principal) IsAdmin() bool  { return p.Role == RoleAdmin }
func (p Principal) IsRep() bool    { return p.Role == RoleRep }
func (p Principal) IsMember() bool { return p.Role == RoleMember }

// CanActOnBranch reports whether the caller's branch scope covers branchID.
// Admins are unrestricted; reps only see their bound branch.
func (p Principal) CanActOnBranch(branchID uint) bool {
	if p.IsAdmin() {
		return true
	}
	if p.IsRep() {
		return p.BranchID != nil && *p.BranchID == branchID
	}
	return false
}

type ctxKey string

const principalKey ctxKey = "principal"

// WithPrincipal adds the caller to the context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the caller from the context
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// System is the principal used by operator tooling such as the CLI
func System() Principal {
	return Principal{Username: "system", Role: RoleAdmin}
}
