package organization

import "time"

// Organization captures the subset of organization data exposed via the
// public API layer.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// MemberRole is the role an account holds inside an organization. Only
// admins may approve reservation requests for the organization's games.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// Membership links an account to an organization with a role.
type Membership struct {
	OrgID     string
	AccountID string
	Role      MemberRole
	CreatedAt time.Time
}
