package domain

import "fmt"

// Role is the access level granted to a collaborator on a contract.
// The creator holds no Role; they are authorized for everything.
type Role string

const (
	RoleEditor   Role = "Editor"
	RoleViewer   Role = "Viewer"
	RoleApprover Role = "Approver"
)

// ParseRole validates an externally supplied role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleEditor, RoleViewer, RoleApprover:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, s)
	}
}

// Capability is a single permitted action checked by Authorize.
type Capability string

const (
	CapView                Capability = "VIEW"
	CapEditClauses         Capability = "EDIT_CLAUSES"
	CapComment             Capability = "COMMENT"
	CapApprove             Capability = "APPROVE"
	CapManageCollaborators Capability = "MANAGE_COLLABORATORS"
)

// grants reports whether a role carries a capability. Collaborator
// management is never granted by role; it stays creator-only.
func (r Role) grants(cap Capability) bool {
	switch r {
	case RoleEditor:
		return cap == CapView || cap == CapEditClauses || cap == CapComment
	case RoleViewer:
		return cap == CapView || cap == CapComment
	case RoleApprover:
		return cap == CapView || cap == CapComment || cap == CapApprove
	}
	return false
}
